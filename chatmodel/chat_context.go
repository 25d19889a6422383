package chatmodel

import (
	"context"
	"sync"

	"github.com/effective-security/x/values"
	"github.com/google/uuid"
)

// ChatContext identifies a conversation and carries per-chat state across
// the assistant, tools and message store.
type ChatContext interface {
	GetChatID() string
	// AppData returns immutable application data attached at creation.
	AppData() any
	// GetMetadata reads a mutable metadata value.
	GetMetadata(key string) (value any, ok bool)
	// SetMetadata writes a mutable metadata value.
	SetMetadata(key string, value any)
}

type chatState struct {
	id      string
	meta    sync.Map
	appData any
}

func (c *chatState) GetChatID() string {
	return c.id
}

func (c *chatState) AppData() any {
	return c.appData
}

func (c *chatState) GetMetadata(key string) (value any, ok bool) {
	return c.meta.Load(key)
}

func (c *chatState) SetMetadata(key string, value any) {
	c.meta.Store(key, value)
}

// NewChatContext creates a ChatContext, minting a random chat ID when
// none is given.
func NewChatContext(chatID string, appData any) ChatContext {
	return &chatState{
		id:      values.StringsCoalesce(chatID, NewChatID()),
		appData: appData,
	}
}

type contextKey int

const keyContext contextKey = iota

// WithChatContext attaches the ChatContext to a context.Context.
func WithChatContext(ctx context.Context, chatCtx ChatContext) context.Context {
	return context.WithValue(ctx, keyContext, chatCtx)
}

// GetChatContext returns the attached ChatContext, or nil.
func GetChatContext(ctx context.Context) ChatContext {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v
	}
	return nil
}

// GetChatID returns the chat ID from the context, or an empty string when
// no ChatContext is attached.
func GetChatID(ctx context.Context) string {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v.GetChatID()
	}
	return ""
}

// NewChatID mints a random chat ID.
func NewChatID() string {
	return uuid.NewString()
}
