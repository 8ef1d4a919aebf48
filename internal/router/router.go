package router

import (
	"context"
	"time"

	"github.com/nidhogg/codsworth/internal/assistant"
	"github.com/nidhogg/codsworth/internal/command"
	"github.com/nidhogg/codsworth/internal/gateway"
	"go.uber.org/zap"
)

// Responder turns a user message into a reply, executing any actions the
// model requested along the way.
type Responder interface {
	Handle(ctx context.Context, userID, message string) (*assistant.Reply, error)
}

// Sender pushes an outbound message back to its originating platform.
type Sender interface {
	Send(ctx context.Context, msg *gateway.OutboundMessage) error
}

// MessageRouter routes inbound messages to slash commands or the assistant.
type MessageRouter struct {
	responder Responder
	gw        Sender
	commands  *command.Registry
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a new MessageRouter.
func New(responder Responder, gw Sender, commands *command.Registry, logger *zap.Logger) *MessageRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageRouter{
		responder: responder,
		gw:        gw,
		commands:  commands,
		timeout:   2 * time.Minute,
		logger:    logger,
	}
}

// Handle routes an inbound message. Signature matches gateway.MessageHandler.
func (mr *MessageRouter) Handle(msg *gateway.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), mr.timeout)
	defer cancel()

	mr.logger.Info("routing message",
		zap.String("platform", msg.Platform),
		zap.String("channel", msg.ChannelID),
		zap.String("user", msg.UserID),
	)

	// Slash commands bypass the model entirely.
	if command.IsCommand(msg.Content) && mr.commands != nil {
		cc := &command.CommandContext{
			Platform:  msg.Platform,
			ChannelID: msg.ChannelID,
			UserID:    msg.UserID,
			UserName:  msg.UserName,
		}
		result, err := mr.commands.Dispatch(ctx, msg.Content, cc)
		if err != nil {
			mr.logger.Error("command dispatch error", zap.Error(err))
			mr.sendReply(ctx, msg, "Command error: "+err.Error())
			return
		}
		mr.sendReply(ctx, msg, result.Content)
		return
	}

	reply, err := mr.responder.Handle(ctx, msg.UserID, msg.Content)
	if err != nil {
		mr.logger.Error("assistant handle failed",
			zap.String("user", msg.UserID), zap.Error(err))
		mr.sendReply(ctx, msg, "Sorry, something went wrong handling that request.")
		return
	}

	if reply.Batch.Failed > 0 {
		mr.logger.Warn("some actions failed",
			zap.String("user", msg.UserID),
			zap.Int("failed", reply.Batch.Failed),
			zap.Int("succeeded", reply.Batch.Succeeded))
	}

	mr.sendReply(ctx, msg, reply.Text)
}

// sendReply sends a text reply back to the originating platform/channel.
func (mr *MessageRouter) sendReply(ctx context.Context, orig *gateway.InboundMessage, text string) {
	if text == "" {
		return
	}
	err := mr.gw.Send(ctx, &gateway.OutboundMessage{
		Platform:  orig.Platform,
		ChannelID: orig.ChannelID,
		Content:   text,
		ReplyTo:   orig.ReplyTo,
	})
	if err != nil {
		mr.logger.Error("send reply failed", zap.Error(err))
	}
}
