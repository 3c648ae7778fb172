package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reqforge/reqforge/src/storage"
)

// fakeStore is an in-memory Store with per-operation failure injection, used
// to exercise the engine's partial-write behavior.
type fakeStore struct {
	mu sync.Mutex

	conversations map[string]*storage.Conversation
	messages      []*storage.Message
	documents     map[string]*storage.Document
	versions      []*storage.DocumentVersion
	profile       storage.Profile

	failUpsertDocument error
	failInsertVersion  error
	failAddTokens      error

	conversationTokenAdds []int
	profileTokenAdds      []int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[string]*storage.Conversation),
		documents:     make(map[string]*storage.Document),
		profile:       storage.Profile{ID: 1},
	}
}

func docKey(conversationID, docType string) string {
	return conversationID + "/" + docType
}

func (f *fakeStore) CreateConversation(_ context.Context, conversation *storage.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	conversation.CreatedAt = time.Now()
	conversation.UpdatedAt = conversation.CreatedAt
	copied := *conversation
	f.conversations[conversation.ID] = &copied
	return nil
}

func (f *fakeStore) GetConversation(_ context.Context, conversationID string) (*storage.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[conversationID]
	if !ok {
		return nil, nil
	}
	copied := *conv
	return &copied, nil
}

func (f *fakeStore) ListConversations(_ context.Context) ([]storage.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Conversation, 0, len(f.conversations))
	for _, conv := range f.conversations {
		out = append(out, *conv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeStore) UpdateConversationTitle(_ context.Context, conversationID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.conversations[conversationID]; ok {
		conv.Title = title
	}
	return nil
}

func (f *fakeStore) AddConversationTokens(_ context.Context, conversationID string, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAddTokens != nil {
		return f.failAddTokens
	}
	f.conversationTokenAdds = append(f.conversationTokenAdds, amount)
	if conv, ok := f.conversations[conversationID]; ok {
		conv.TotalTokens += amount
	}
	return nil
}

func (f *fakeStore) DeleteConversation(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conversations, conversationID)
	kept := f.messages[:0]
	for _, m := range f.messages {
		if m.ConversationID != conversationID {
			kept = append(kept, m)
		}
	}
	f.messages = kept
	for key, doc := range f.documents {
		if doc.ConversationID == conversationID {
			delete(f.documents, key)
		}
	}
	keptVersions := f.versions[:0]
	for _, v := range f.versions {
		if v.ConversationID != conversationID {
			keptVersions = append(keptVersions, v)
		}
	}
	f.versions = keptVersions
	return nil
}

func (f *fakeStore) CreateMessage(_ context.Context, message *storage.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.CreatedAt = time.Now()
	copied := *message
	f.messages = append(f.messages, &copied)
	return nil
}

func (f *fakeStore) GetMessage(_ context.Context, messageID string) (*storage.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == messageID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListMessages(_ context.Context, conversationID string) ([]storage.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateMessage(_ context.Context, message *storage.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.messages {
		if m.ID == message.ID {
			copied := *message
			copied.CreatedAt = m.CreatedAt
			f.messages[i] = &copied
			return nil
		}
	}
	return nil
}

func (f *fakeStore) SetMessageFeedback(_ context.Context, messageID string, rating *int, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == messageID {
			m.FeedbackRating = rating
			m.FeedbackComment = comment
		}
	}
	return nil
}

func (f *fakeStore) DeleteMessage(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.messages[:0]
	for _, m := range f.messages {
		if m.ID != messageID {
			kept = append(kept, m)
		}
	}
	f.messages = kept
	return nil
}

func (f *fakeStore) GetDocument(_ context.Context, conversationID, docType string) (*storage.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[docKey(conversationID, docType)]
	if !ok {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeStore) ListDocuments(_ context.Context, conversationID string) ([]storage.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.Document
	for _, doc := range f.documents {
		if doc.ConversationID == conversationID {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocType < out[j].DocType })
	return out, nil
}

func (f *fakeStore) UpsertDocument(_ context.Context, doc *storage.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsertDocument != nil {
		return f.failUpsertDocument
	}
	copied := *doc
	copied.UpdatedAt = time.Now()
	f.documents[docKey(doc.ConversationID, doc.DocType)] = &copied
	return nil
}

func (f *fakeStore) SetDocumentStale(_ context.Context, conversationID, docType string, stale bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.documents[docKey(conversationID, docType)]; ok {
		doc.IsStale = stale
	}
	return nil
}

func (f *fakeStore) InsertVersion(_ context.Context, version *storage.DocumentVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsertVersion != nil {
		return f.failInsertVersion
	}
	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	version.CreatedAt = time.Now()
	copied := *version
	f.versions = append(f.versions, &copied)
	return nil
}

func (f *fakeStore) MaxVersionNumber(_ context.Context, conversationID, docType string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, v := range f.versions {
		if v.ConversationID == conversationID && v.DocType == docType && v.Number > max {
			max = v.Number
		}
	}
	return max, nil
}

func (f *fakeStore) GetVersion(_ context.Context, conversationID, docType string, number int) (*storage.DocumentVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.versions {
		if v.ConversationID == conversationID && v.DocType == docType && v.Number == number {
			copied := *v
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetLatestVersion(_ context.Context, conversationID, docType string) (*storage.DocumentVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *storage.DocumentVersion
	for _, v := range f.versions {
		if v.ConversationID == conversationID && v.DocType == docType {
			if latest == nil || v.Number > latest.Number {
				latest = v
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeStore) ListVersions(_ context.Context, conversationID, docType string) ([]storage.DocumentVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.DocumentVersion
	for _, v := range f.versions {
		if v.ConversationID == conversationID && v.DocType == docType {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f *fakeStore) GetProfile(_ context.Context) (*storage.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := f.profile
	return &copied, nil
}

func (f *fakeStore) AddProfileTokens(_ context.Context, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAddTokens != nil {
		return f.failAddTokens
	}
	f.profileTokenAdds = append(f.profileTokenAdds, amount)
	f.profile.TotalTokens += amount
	return nil
}

func (f *fakeStore) documentFor(conversationID string, docType DocType) *storage.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[docKey(conversationID, string(docType))]
	if !ok {
		return nil
	}
	copied := *doc
	return &copied
}
