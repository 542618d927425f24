// Simulation client: drives a tutoring session end to end through the
// sync engine against a running server. Useful for eyeballing the
// optimistic send, poll reconciliation and snapshot behavior.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/pkg/syncengine"
	"ai-tutoring-be/pkg/syncengine/httptransport"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	baseURL := os.Getenv("SIM_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.App.Port
	}

	ownerID := uuid.New()
	token, err := signToken(cfg.App.JWTSecret, ownerID)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println("=== Tutoring Session Simulation Client ===")
	fmt.Printf("Connecting as Owner: %s\n", ownerID)

	// Tier-2 snapshots via redis when reachable, otherwise in-memory.
	var snapshots syncengine.SnapshotStore = syncengine.NewMemorySnapshotStore()
	if opt, err := redis.ParseURL(cfg.App.RedisURL); err == nil {
		rdb := redis.NewClient(opt)
		if rdb.Ping(context.Background()).Err() == nil {
			snapshots = syncengine.NewRedisSnapshotStore(rdb, 24*time.Hour)
			fmt.Println("Snapshot store: REDIS")
		} else {
			fmt.Println("Snapshot store: MEMORY (redis unreachable)")
		}
	}

	engine := syncengine.NewEngine(
		httptransport.New(baseURL, token),
		snapshots,
		syncengine.Config{
			PollInterval: cfg.Sync.PollInterval,
			StoreTimeout: cfg.Sync.StoreTimeout,
			Staleness:    cfg.Sync.SnapshotStaleness,
			OnStatusChange: func(online bool) {
				if online {
					fmt.Println("[status] back online")
				} else {
					fmt.Println("[status] offline")
				}
			},
		},
	)
	defer engine.Shutdown()

	ctx := context.Background()

	sess, err := engine.StartSession(ctx, "I don't understand price elasticity of demand")
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	fmt.Printf("Session Created: %s (status=%s)\n", sess.Id, sess.Status)

	turns := []string{
		"Demand goes down when price goes up, right? But why is it called elastic?",
		"So elasticity measures how strongly demand reacts to a price change?",
		"Got it. Elastic means a small price change moves demand a lot.",
	}

	for _, text := range turns {
		fmt.Printf("\nSTUDENT: %s\n", text)
		if _, err := engine.Send(ctx, sess.Id, text); err != nil {
			fmt.Printf("Send failed: %v\n", err)
			continue
		}

		reply := waitForReply(ctx, engine, sess.Id, 30*time.Second)
		if reply == "" {
			fmt.Println("TUTOR: (no reply yet)")
		} else {
			fmt.Printf("TUTOR: %s\n", reply)
		}

		view, _ := engine.View(sess.Id)
		if view != nil && view.Terminal() {
			fmt.Printf("\nSession ended: %s\n", view.Status)
			if view.Outcome != nil {
				fmt.Printf("Summary: %s\n", view.Outcome.Summary)
			}
			return
		}
	}
}

// waitForReply polls the local view until a responder turn shows up
// after the last initiator turn, or the timeout expires.
func waitForReply(ctx context.Context, engine *syncengine.Engine, sessionID uuid.UUID, timeout time.Duration) string {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		view, err := engine.View(sessionID)
		if err != nil {
			return ""
		}
		if n := len(view.Messages); n > 0 {
			last := view.Messages[n-1]
			if last.Role == "responder" {
				return last.Content
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return ""
}

func signToken(secret string, ownerID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"owner_id": ownerID.String(),
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
