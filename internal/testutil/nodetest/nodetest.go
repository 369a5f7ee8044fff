// Package nodetest builds sessions connected to a fake node.
package nodetest

import (
	"context"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/require"

	"github.com/osa030/lavabox/internal/app/session"
	"github.com/osa030/lavabox/internal/testutil/fakenode"
)

// BotID is the user ID the test identity reports.
const BotID = snowflake.ID(1234)

// Identity is a fixed bot identity.
type Identity struct{}

func (Identity) CurrentUser(context.Context) (session.User, error) {
	return session.User{ID: BotID, Name: "bot"}, nil
}

// Config returns a session config pointing at node with short timings.
func Config(node *fakenode.Node, name string) session.Config {
	return session.Config{
		Name:           name,
		Host:           node.Host(),
		Port:           node.Port(),
		Password:       fakenode.Password,
		Attempts:       3,
		RetryDelay:     10 * time.Millisecond,
		RequestTimeout: 2 * time.Second,
	}
}

// Ready starts a session against node and waits for the READY frame carrying
// sessionID. The session is stopped when the test ends.
func Ready(t testing.TB, node *fakenode.Node, name, sessionID string, deps session.Deps) *session.Session {
	t.Helper()

	if deps.Identity == nil {
		deps.Identity = Identity{}
	}
	s := session.New(Config(node, name), deps)
	s.Start()
	t.Cleanup(func() { s.Stop(context.Background()) })

	require.True(t, node.WaitConnected(2*time.Second), "node %s was never connected", name)
	node.SendReady(sessionID)
	require.Eventually(t, func() bool {
		_, err := s.SessionID()
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	return s
}
