package server

import (
	"context"
	"sync"
	"time"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/logger"
)

// QuestLogStore is the durable storage behind Player.Persist and
// Player.LoadPersisted. *database.Database implements it.
type QuestLogStore interface {
	LoadQuestLog(ctx context.Context, playerID string) ([]byte, bool, error)
	SaveQuestLog(ctx context.Context, playerID string, data []byte) error
}

// saver writes one player's quest log off the session strand. Submissions
// that arrive while a write is in flight collapse to the latest one.
type saver struct {
	store    QuestLogStore
	playerID string
	timeout  time.Duration

	mu      sync.Mutex
	pending []byte

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func newSaver(store QuestLogStore, playerID string, timeout time.Duration) *saver {
	s := &saver{
		store:    store,
		playerID: playerID,
		timeout:  timeout,
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *saver) submit(data []byte) {
	s.mu.Lock()
	s.pending = data
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *saver) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.writePending()
		case <-s.quit:
			s.writePending()
			return
		}
	}
}

func (s *saver) writePending() {
	s.mu.Lock()
	data := s.pending
	s.pending = nil
	s.mu.Unlock()

	if data == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.store.SaveQuestLog(ctx, s.playerID, data); err != nil {
		logger.Error("Failed to save quest log", "player", s.playerID, "error", err)
		return
	}
	logger.Debug("Saved quest log", "player", s.playerID, "bytes", len(data))
}

// close writes anything still pending and waits for the writer to stop.
func (s *saver) close() {
	close(s.quit)
	<-s.done
}
