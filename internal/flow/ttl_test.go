package flow

import "time"

func (s *FlowTestSuite) TestTTLCache() {
	c := NewTTL[string, string]()
	c.Set("key1", "value1", 200*time.Millisecond)
	v, ok := c.Get("key1")
	s.True(ok)
	s.Equal("value1", v)

	s.advance(250 * time.Millisecond)
	v, ok = c.Get("key1")
	s.False(ok)
	s.Equal("", v)
}

func (s *FlowTestSuite) TestTTLCacheDelete() {
	c := NewTTL[string, int]()
	c.Set("k", 7, time.Minute)
	c.Delete("k")
	_, ok := c.Get("k")
	s.False(ok)
}
