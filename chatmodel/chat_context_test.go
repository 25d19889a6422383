package chatmodel_test

import (
	"context"
	"testing"

	"github.com/effective-security/tempoagent/chatmodel"
	"github.com/stretchr/testify/assert"
)

func Test_ChatContext(t *testing.T) {
	cc := chatmodel.NewChatContext("chat1", "app")
	assert.Equal(t, "chat1", cc.GetChatID())
	assert.Equal(t, "app", cc.AppData())

	_, ok := cc.GetMetadata("key")
	assert.False(t, ok)
	cc.SetMetadata("key", 42)
	v, ok := cc.GetMetadata("key")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	ctx := chatmodel.WithChatContext(context.Background(), cc)
	assert.Equal(t, "chat1", chatmodel.GetChatID(ctx))
	assert.Equal(t, cc, chatmodel.GetChatContext(ctx))

	assert.Empty(t, chatmodel.GetChatID(context.Background()))
	assert.Nil(t, chatmodel.GetChatContext(context.Background()))
}

func Test_NewChatContext_MintsID(t *testing.T) {
	cc := chatmodel.NewChatContext("", nil)
	assert.NotEmpty(t, cc.GetChatID())
	assert.NotEqual(t, cc.GetChatID(), chatmodel.NewChatID())
}
