package cmd

import (
	"context"

	"github.com/BioHazard786/Warpchat/cli/internal/config"
	"github.com/BioHazard786/Warpchat/cli/internal/peer"
	"github.com/BioHazard786/Warpchat/cli/internal/signaling"
)

// ConnectionContext is a live signaling connection with its router running.
type ConnectionContext struct {
	Client  *signaling.Client
	Handler *signaling.Handler
	Config  *config.Config
}

func NewConnectionContext(ctx context.Context, cfg *config.Config) (*ConnectionContext, error) {
	client := signaling.NewClient()
	if err := client.Connect(ctx, cfg.WebSocketURL(nil)); err != nil {
		return nil, peer.WrapError("connect to server", err, cfg.ServerURL)
	}

	handler := signaling.NewHandler(client)
	go handler.Start()

	return &ConnectionContext{
		Client:  client,
		Handler: handler,
		Config:  cfg,
	}, nil
}

func (c *ConnectionContext) Close() {
	if c.Handler != nil {
		c.Handler.Stop()
	}
	if c.Client != nil {
		c.Client.Close()
	}
}
