package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatekeeper/internal/api"
	"gatekeeper/internal/approval"
	"gatekeeper/internal/backends"
	"gatekeeper/internal/command"
	"gatekeeper/internal/flow"
	"gatekeeper/internal/members"
	"gatekeeper/internal/notify/telegram"
	"gatekeeper/internal/ports"
	"gatekeeper/internal/types"

	filebackend "gatekeeper/internal/backends/file"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const maxPollBackoff = 30 * time.Second

func main() {
	// Load environment variables
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Info("The .env file not found.")
	}

	cfgPath := os.Getenv("GATEKEEPER_CONFIG")
	if cfgPath == "" {
		cfgPath = "gatekeeper.yml"
	}
	cfg, err := types.LoadEngineConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	memberStore, err := backends.MemberBackendFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize member store: %v", err)
	}
	auditLog, err := backends.AuditBackendFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize audit log: %v", err)
	}

	svc := members.New(memberStore)
	policyStore := filebackend.NewPolicyStore(cfg.PolicyFile)
	policy, err := policyStore.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load policy: %v", err)
	}

	bot := telegram.NewClient(cfg.TelegramToken, cfg.TelegramChatID)
	coord := approval.New(svc, bot, auditLog)
	if cfg.FeedTopicARN != "" {
		feed, err := backends.SNSPublisherFromEnv(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize feed publisher: %v", err)
		}
		coord.WithFeed(feed, cfg.FeedTopicARN)
	}

	proc := command.NewProcessor(svc, policyStore, coord, auditLog, policy, cfg.Durations())
	ingest, err := flow.NewIngestor(cfg)
	if err != nil {
		log.Fatalf("Failed to build ingestor: %v", err)
	}

	// Rebuild the derived set caches from the durable policy. Failures here
	// are transient store trouble, correctable with SYNC later.
	if n, err := svc.Reconcile(ctx, types.SetStatic, policy.Static); err != nil {
		log.WithError(err).Warn("startup static sync failed")
	} else {
		log.Infof("Synced %d static MAC addresses", n)
	}
	if n, err := svc.Reconcile(ctx, types.SetBlacklist, policy.Blacklist); err != nil {
		log.WithError(err).Warn("startup blacklist sync failed")
	} else {
		log.Infof("Synced %d blacklist MAC addresses", n)
	}

	handler := api.NewHandler(cfg.IntakeToken, ingest, svc, proc, coord, cfg.Durations())
	stop, done := api.RunServerInterruptible(cfg.ListenPort, handler)

	go runUpdateLoop(ctx, bot, bot, proc)

	select {
	case <-ctx.Done():
		stop <- struct{}{}
		<-done
	case err := <-done:
		if err != nil {
			log.Fatalf("Intake server failed: %v", err)
		}
	}
}

// runUpdateLoop long-polls the chat and feeds input to the command
// processor. Transient channel errors back off up to maxPollBackoff and
// never terminate the loop.
func runUpdateLoop(ctx context.Context, src ports.UpdateSource, notifier ports.Notifier, proc *command.Processor) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := src.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("update poll failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxPollBackoff {
				backoff = maxPollBackoff
			}
			continue
		}
		backoff = time.Second

		for _, up := range updates {
			reply := proc.Handle(ctx, up)
			if reply == "" {
				continue
			}
			if _, err := notifier.SendMessage(ctx, reply, nil); err != nil {
				log.WithError(err).Error("failed to send reply")
			}
		}
	}
}
