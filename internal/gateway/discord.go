package gateway

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

const discordMessageLimit = 2000

type DiscordGateway struct {
	Session *discordgo.Session
	Handler Handler
}

func NewDiscordGateway(token string, handler Handler) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &DiscordGateway{
		Session: session,
		Handler: handler,
	}, nil
}

func (dg *DiscordGateway) Start() error {
	dg.Session.AddHandler(dg.onMessage)
	dg.Session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages

	if err := dg.Session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %v", err)
	}
	log.Printf("Discord gateway connected as %s", dg.Session.State.User.Username)

	// discordgo runs its own event loop; block forever like the
	// long-poll gateways do.
	select {}
}

func (dg *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	log.Printf("[%s] %s", m.Author.Username, m.Content)

	rep := dg.Handler.Handle(context.Background(), m.ChannelID, m.Content)

	response := formatReport(rep)
	if len(response) > discordMessageLimit {
		response = response[:discordMessageLimit-3] + "..."
	}

	if _, err := s.ChannelMessageSend(m.ChannelID, response); err != nil {
		log.Printf("Error sending discord message: %v", err)
	}
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	if len(text) > discordMessageLimit {
		text = text[:discordMessageLimit-3] + "..."
	}
	_, err := dg.Session.ChannelMessageSend(chatID, text)
	return err
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}
