package server

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/jeremymiller99/lumberjacksim-sub000/internal/events"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/items"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/logger"
	"github.com/jeremymiller99/lumberjacksim-sub000/internal/quest"
)

// Session is one connected player. Every touch of the player's quest log
// and inventory runs on the session strand, a single goroutine fed through
// post. Timer callbacks from the quest log are delivered the same way.
type Session struct {
	id      string
	client  Client
	catalog *items.Catalog

	// Strand-owned state.
	inv       *items.Inventory
	log       *quest.PlayerQuestLog
	spawned   bool
	persisted []byte
	restored  bool

	saver *saver
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newSession(id string, client Client, catalog *items.Catalog, slots int, store QuestLogStore, saveTimeout time.Duration) *Session {
	return &Session{
		id:      id,
		client:  client,
		catalog: catalog,
		inv:     items.NewInventory(catalog, slots),
		saver:   newSaver(store, id, saveTimeout),
		tasks:   make(chan func(), 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// start launches the strand and builds the quest log on it.
func (s *Session) start(registry *quest.Registry, opts quest.Options) {
	opts.Scheduler = strandScheduler{s}
	go s.run()

	s.post(func() {
		s.log = quest.NewPlayerQuestLog(s, registry, opts)
		s.send(WelcomeMessage{
			Type:      MsgWelcome,
			Player:    s.id,
			Active:    s.log.GetActiveQuests(),
			Completed: s.log.GetCompletedQuests(),
		})
		s.log.SyncAll()
	})
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.tasks:
			s.exec(fn)
		case <-s.quit:
			s.exec(func() {
				if s.log != nil {
					s.log.Close()
				}
			})
			s.saver.close()
			return
		}
	}
}

// exec runs fn and keeps a panicking content hook from taking the
// process down.
func (s *Session) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered panic in session",
				"player", s.id,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// post queues fn on the strand. Returns false once the session has closed.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.quit:
		return false
	default:
	}
	select {
	case s.tasks <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Close flushes the quest log, waits for the final save and closes the
// connection. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() { close(s.quit) })
	<-s.done
	s.client.Close()
}

func (s *Session) send(msg any) {
	if err := s.client.Send(msg); err != nil {
		logger.Debug("Failed to send to client", "player", s.id, "error", err)
	}
}

// handle dispatches one client message. Runs on the strand.
func (s *Session) handle(msg ClientMessage) {
	if s.log == nil {
		s.send(newError(CodeUnavailable, "Quest log is unavailable."))
		return
	}

	switch msg.Type {
	case MsgInteract:
		s.interact(msg.NPC)
	case MsgSelect:
		s.selectOption(msg.NPC, msg.ID)
	case MsgEvent:
		s.worldEvent(msg)
	case MsgSpawn:
		s.spawned = true
		s.log.ResetAlerts()
	case MsgDespawn:
		s.spawned = false
	case MsgQuests:
		s.log.SyncAll()
	case MsgInventory:
		s.sendInventory()
	case MsgHello:
		s.send(newError(CodeBadRequest, "Already greeted."))
	default:
		s.send(newError(CodeUnknownType, "Unknown message type."))
	}
}

func (s *Session) interact(npc string) {
	if npc == "" {
		s.send(newError(CodeBadRequest, "Missing npc."))
		return
	}
	s.log.Events().Publish(events.Event{Kind: events.KindTalk, Target: npc})
	s.sendRoots(npc)
}

func (s *Session) sendRoots(npc string) {
	s.send(DialogueMessage{
		Type:    MsgDialogue,
		NPC:     npc,
		Options: optionViews(s.log.Talk(npc)),
	})
}

func (s *Session) selectOption(npc string, id int) {
	opt, ok := s.log.Select(npc, id)
	if !ok {
		s.send(newError(CodeStaleOption, "That option is no longer available."))
		s.sendRoots(npc)
		return
	}

	switch {
	case opt.Dismiss:
		s.send(DialogueCloseMessage{Type: MsgDialogueClose, NPC: npc})
	case opt.HasNext():
		s.send(DialogueMessage{
			Type:    MsgDialogue,
			NPC:     npc,
			Text:    opt.Next.Text,
			Options: optionViews(opt.Next.Options),
		})
	default:
		s.sendRoots(npc)
	}
}

// worldEvent applies an in-world occurrence reported by the client, then
// publishes it for quest tracking. Only gather, craft and deliver may be
// reported by clients.
func (s *Session) worldEvent(msg ClientMessage) {
	if msg.Kind == "" || msg.Quantity < 0 {
		s.send(newError(CodeBadRequest, "Invalid event."))
		return
	}
	e := events.Event{Kind: msg.Kind, Target: msg.Target, Quantity: msg.Quantity}

	switch e.Kind {
	case events.KindGather, events.KindCraft:
		if _, ok := s.catalog.Get(e.Target); !ok {
			s.send(newError(CodeUnknownItem, "Unknown item."))
			return
		}
		if !s.inv.AddItem(e.Target, e.Count()) {
			s.Notify("Your bag is full.", quest.NotifyError)
			return
		}
	case events.KindDeliver:
		if !s.inv.RemoveItem(e.Target, e.Count()) {
			s.Notify("You don't have that.", quest.NotifyError)
			return
		}
	default:
		// talk is published by interact; clients cannot report it.
		s.send(newError(CodeBadRequest, "Unsupported event."))
		return
	}

	s.log.Events().Publish(e)
}

func (s *Session) sendInventory() {
	s.send(InventoryMessage{
		Type:        MsgInventory,
		Items:       s.inv.Contents(),
		FreeSlots:   s.inv.FreeSlots(),
		Currency:    s.inv.Currency(),
		SkillPoints: s.inv.SkillPoints(),
	})
}

// quest.Player implementation. Called on the strand.

func (s *Session) ID() string { return s.id }

func (s *Session) HasItem(item string, quantity int) bool {
	return s.inv.HasItem(item, quantity)
}

func (s *Session) AddItem(item string, quantity int) bool {
	return s.inv.AddItem(item, quantity)
}

func (s *Session) RemoveItem(item string, quantity int) bool {
	return s.inv.RemoveItem(item, quantity)
}

func (s *Session) AdjustCurrency(amount int) bool {
	return s.inv.AdjustCurrency(amount)
}

func (s *Session) AddSkillPoints(points int) bool {
	return s.inv.AddSkillPoints(points)
}

func (s *Session) CanAddItems(stacks []quest.ItemStack) bool {
	converted := make([]items.Stack, len(stacks))
	for i, st := range stacks {
		converted[i] = items.Stack{ItemID: st.Item, Quantity: st.Quantity}
	}
	return s.inv.CanAdd(converted)
}

func (s *Session) Notify(message string, kind quest.NotifyKind) {
	s.send(NotifyMessage{Type: MsgNotify, Message: message, Kind: kind})
}

func (s *Session) SendUIData(payload any) {
	s.send(payload)
}

func (s *Session) Persist(data []byte) {
	s.saver.submit(data)
}

func (s *Session) LoadPersisted() ([]byte, bool) {
	return s.persisted, s.restored
}

func (s *Session) Spawned() bool {
	return s.spawned
}

// strandScheduler delivers quest log timer callbacks on the session strand.
type strandScheduler struct {
	s *Session
}

func (sc strandScheduler) AfterFunc(d time.Duration, fn func()) quest.Timer {
	return time.AfterFunc(d, func() { sc.s.post(fn) })
}
