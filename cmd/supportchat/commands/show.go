package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"supportchat/internal/api"
	"supportchat/internal/config"
	"supportchat/pkg/models"
)

var (
	showName  string
	showEmail string
	showPhone string
)

// NewShowCommand creates the show command
func NewShowCommand() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show [session-id]",
		Short: "List chat sessions or print a transcript without the TUI",
		Long: `Show chat sessions or messages in a non-interactive format.
Without arguments: lists all of the user's chat sessions
With a session ID: prints that session's transcript`,
		RunE: runShow,
	}

	showCmd.Flags().StringVar(&showName, "name", "", "Full name")
	showCmd.Flags().StringVar(&showEmail, "email", "", "Email address")
	showCmd.Flags().StringVar(&showPhone, "phone", "", "Contact number")
	_ = showCmd.MarkFlagRequired("name")
	_ = showCmd.MarkFlagRequired("email")
	_ = showCmd.MarkFlagRequired("phone")

	return showCmd
}

func runShow(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("too many arguments. Usage: supportchat show [session-id]")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client := api.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, zap.NewNop())

	user, err := client.ValidateUser(ctx, showName, showEmail, showPhone)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if len(args) == 1 {
		return showTranscript(ctx, client, args[0])
	}
	return showSessions(ctx, client, user)
}

func showSessions(ctx context.Context, client *api.Client, user *models.User) error {
	histories, err := client.ListChatHistories(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch sessions: %w", err)
	}

	if len(histories) == 0 {
		fmt.Printf("No chat sessions found for %s\n", user.Name)
		return nil
	}

	fmt.Printf("Chat sessions for %s:\n", user.Name)
	fmt.Println("=====================")
	for i, h := range histories {
		fmt.Printf("%d. %s\n", i+1, h.Title)
		fmt.Printf("   ID: %d\n", h.ID)
		fmt.Printf("   Created: %s\n", h.CreatedAt)
		fmt.Printf("   Messages: %d\n", h.MessageCount)
		fmt.Println()
	}

	return nil
}

func showTranscript(ctx context.Context, client *api.Client, sessionID string) error {
	detail, err := client.GetChatMessages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to fetch messages: %w", err)
	}

	if len(detail.Messages) == 0 {
		fmt.Printf("No messages found for session '%s'\n", sessionID)
		return nil
	}

	fmt.Printf("Transcript of '%s':\n", detail.Title)
	fmt.Println("================================================")
	for _, msg := range detail.Messages {
		label := "You"
		if models.SenderFromRole(msg.Role) == models.SenderBot {
			label = "Support"
		}
		fmt.Printf("\n[%s] %s\n%s\n", label, msg.CreatedAt, msg.Content)
	}

	return nil
}
