package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"gatekeeper/internal/types"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const testChatID int64 = 4242

// botServer fakes just enough of the Bot API for the client.
type botServer struct {
	mu       sync.Mutex
	requests map[string][]map[string]any // method -> payloads seen
	updates  string                      // canned getUpdates result
	fail     string                      // method that answers ok=false
}

func (b *botServer) handler(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	method := parts[len(parts)-1]

	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)
	b.mu.Lock()
	b.requests[method] = append(b.requests[method], payload)
	fail := b.fail == method
	updates := b.updates
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail {
		fmt.Fprint(w, `{"ok":false,"description":"Bad Request: nope"}`)
		return
	}
	switch method {
	case "sendMessage":
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":77,"chat":{"id":%d}}}`, testChatID)
	case "getUpdates":
		fmt.Fprintf(w, `{"ok":true,"result":%s}`, updates)
	default:
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}
}

func (b *botServer) seen(method string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[method]
}

type ClientTestSuite struct {
	suite.Suite

	ctx    context.Context
	bot    *botServer
	srv    *httptest.Server
	client *Client
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.bot = &botServer{requests: make(map[string][]map[string]any), updates: "[]"}
	s.srv = httptest.NewServer(http.HandlerFunc(s.bot.handler))
	s.client = NewClient("TEST_TOKEN", testChatID).WithBaseURL(s.srv.URL)
}

func (s *ClientTestSuite) TearDownTest() {
	s.srv.Close()
}

func (s *ClientTestSuite) TestSendMessageWithButtons() {
	id, err := s.client.SendMessage(s.ctx, "New device", []types.Button{
		{Label: "Approve", Data: "approve_aa:bb:cc:dd:ee:ff"},
		{Label: "Deny", Data: "deny_aa:bb:cc:dd:ee:ff"},
	})
	s.NoError(err)
	s.Equal(int64(77), id)

	reqs := s.bot.seen("sendMessage")
	s.Require().Len(reqs, 1)
	s.Equal("New device", reqs[0]["text"])
	s.EqualValues(testChatID, reqs[0]["chat_id"])
	s.Contains(reqs[0], "reply_markup")
}

func (s *ClientTestSuite) TestSendMessagePlain() {
	_, err := s.client.SendMessage(s.ctx, "hello", nil)
	s.NoError(err)
	reqs := s.bot.seen("sendMessage")
	s.Require().Len(reqs, 1)
	s.NotContains(reqs[0], "reply_markup")
}

func (s *ClientTestSuite) TestSendMessageAPIError() {
	s.bot.fail = "sendMessage"
	_, err := s.client.SendMessage(s.ctx, "hello", nil)
	s.True(errors.Is(err, types.ErrChannelAccess))
}

func (s *ClientTestSuite) TestEditMessage() {
	err := s.client.EditMessage(s.ctx, 77, "Approved.")
	s.NoError(err)
	reqs := s.bot.seen("editMessageText")
	s.Require().Len(reqs, 1)
	s.EqualValues(77, reqs[0]["message_id"])
	s.Equal("Approved.", reqs[0]["text"])
}

func (s *ClientTestSuite) TestPollMapsMessagesAndCallbacks() {
	s.bot.updates = fmt.Sprintf(`[
		{"update_id":10,"message":{"message_id":1,"text":"STATUS","chat":{"id":%d}}},
		{"update_id":11,"message":{"message_id":2,"text":"ignored","chat":{"id":999}}},
		{"update_id":12,"callback_query":{"id":"cb1","data":"approve_aa:bb:cc:dd:ee:ff","message":{"message_id":77,"chat":{"id":%d}}}},
		{"update_id":13,"callback_query":{"id":"cb2","data":"selfdestruct_now","message":{"message_id":78,"chat":{"id":%d}}}}
	]`, testChatID, testChatID, testChatID)

	ups, err := s.client.Poll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(ups, 2)

	s.Equal("STATUS", ups[0].Text)
	s.Nil(ups[0].Callback)

	s.Require().NotNil(ups[1].Callback)
	s.Equal("approve", ups[1].Callback.Action)
	s.Equal("aa:bb:cc:dd:ee:ff", ups[1].Callback.MAC)
	s.EqualValues(77, ups[1].Callback.MessageID)

	// The good callback was acked; the unparseable one was not.
	acks := s.bot.seen("answerCallbackQuery")
	s.Require().Len(acks, 1)
	s.Equal("cb1", acks[0]["callback_query_id"])
}

// Offset advances past consumed updates so they are not redelivered.
func (s *ClientTestSuite) TestPollAdvancesOffset() {
	s.bot.updates = fmt.Sprintf(`[{"update_id":41,"message":{"message_id":1,"text":"HELP","chat":{"id":%d}}}]`, testChatID)
	_, err := s.client.Poll(s.ctx)
	s.Require().NoError(err)

	s.bot.updates = "[]"
	_, err = s.client.Poll(s.ctx)
	s.Require().NoError(err)

	reqs := s.bot.seen("getUpdates")
	s.Require().Len(reqs, 2)
	s.EqualValues(0, reqs[0]["offset"])
	s.EqualValues(42, reqs[1]["offset"])
}

func TestSplitCallbackData(t *testing.T) {
	cases := []struct {
		data   string
		action string
		mac    string
		ok     bool
	}{
		{"approve_aa:bb:cc:dd:ee:ff", "approve", "aa:bb:cc:dd:ee:ff", true},
		{"deny_aa:bb:cc:dd:ee:ff", "deny", "aa:bb:cc:dd:ee:ff", true},
		{"reboot_aa:bb:cc:dd:ee:ff", "", "", false},
		{"approve_", "", "", false},
		{"nounderscore", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		action, mac, ok := splitCallbackData(tc.data)
		assert.Equal(t, tc.ok, ok, tc.data)
		assert.Equal(t, tc.action, action, tc.data)
		assert.Equal(t, tc.mac, mac, tc.data)
	}
}
