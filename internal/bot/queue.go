package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// chatQueues keeps one FIFO of updates per chat. A chat is handed to at most
// one worker at a time, so its updates run in arrival order while other
// chats proceed on the remaining workers.
type chatQueues struct {
	mu        sync.Mutex
	cond      *sync.Cond
	pending   map[int64][]tgbotapi.Update
	scheduled map[int64]bool
	ready     []int64
	closed    bool
}

func newChatQueues() *chatQueues {
	q := &chatQueues{
		pending:   make(map[int64][]tgbotapi.Update),
		scheduled: make(map[int64]bool),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends an update to its chat's queue. It never blocks on a busy chat.
func (q *chatQueues) push(chatID int64, u tgbotapi.Update) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[chatID] = append(q.pending[chatID], u)
	if !q.scheduled[chatID] {
		q.scheduled[chatID] = true
		q.ready = append(q.ready, chatID)
		q.cond.Signal()
	}
}

// next blocks until a chat has work and takes its queued updates. It
// returns false once the queues are closed and drained.
func (q *chatQueues) next() (int64, []tgbotapi.Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.ready) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.ready) == 0 {
		return 0, nil, false
	}
	chatID := q.ready[0]
	q.ready = q.ready[1:]
	batch := q.pending[chatID]
	delete(q.pending, chatID)
	return chatID, batch, true
}

// done releases a chat taken by next. Updates that arrived meanwhile put
// the chat back at the end of the ready list.
func (q *chatQueues) done(chatID int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending[chatID]) == 0 {
		delete(q.scheduled, chatID)
		return
	}
	q.ready = append(q.ready, chatID)
	q.cond.Signal()
}

func (q *chatQueues) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func chatKey(u tgbotapi.Update) int64 {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID
	case u.CallbackQuery != nil:
		if m := u.CallbackQuery.Message; m != nil && m.Chat != nil {
			return m.Chat.ID
		}
		if u.CallbackQuery.From != nil {
			return u.CallbackQuery.From.ID
		}
	}
	return 0
}
