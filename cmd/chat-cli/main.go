package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"rag-chatbot-be/internal/bootstrap"
	"rag-chatbot-be/internal/config"
	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/pkg/database"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	ownerId   string
	ownerKind string
	sessionId string
	historyN  int
)

var rootCmd = &cobra.Command{
	Use:   "chat-cli",
	Short: "Chat with the configured RAG pipeline from a terminal",
	Long: `Runs the chat pipeline in-process against the backends named in .env.
Lines starting with "/" are commands: /new, /history, /link <registered-id>, /quit.`,
	RunE: runChat,
}

var linkCmd = &cobra.Command{
	Use:   "link <anonymous-id> <registered-id>",
	Short: "Move every session of an anonymous identity to a registered one",
	Args:  cobra.ExactArgs(2),
	RunE:  runLink,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ownerId, "owner", "anon-cli", "identity that owns new sessions")
	rootCmd.PersistentFlags().StringVar(&ownerKind, "kind", "anonymous", "owner kind: anonymous or registered")
	rootCmd.Flags().StringVar(&sessionId, "session", "", "resume an existing session instead of creating one")
	rootCmd.Flags().IntVar(&historyN, "history", 20, "turns shown by /history")
	rootCmd.AddCommand(linkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newContainer(ctx context.Context) (*bootstrap.Container, error) {
	cfg := config.Load()

	var db *gorm.DB
	if cfg.Database.Connection != "" {
		conn, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		db = conn
	}
	return bootstrap.NewContainer(ctx, db, cfg)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	c, err := newContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if sessionId == "" {
		if sessionId, err = newSession(ctx, c); err != nil {
			return err
		}
	}
	color.Cyan("Session %s (owner %s). Type /quit to leave.", sessionId, ownerId)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(color.YellowString("you> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := runCommand(ctx, c, line)
			if err != nil {
				color.Red("error: %v", err)
			}
			if quit {
				return nil
			}
			continue
		}

		fmt.Print(color.GreenString("bot> "))
		res, err := c.ChatService.StreamPrompt(ctx, &dto.SendPromptRequest{SessionId: sessionId, Prompt: line}, func(fragment string) error {
			fmt.Print(fragment)
			return nil
		})
		fmt.Println()
		if err != nil {
			color.Red("error: %v", err)
			continue
		}
		if res.RetrievalDegraded {
			color.Yellow("(answered without reference material)")
		} else if len(res.Sources) > 0 {
			color.HiBlack("sources: %s", strings.Join(res.Sources, ", "))
		}
	}
}

func runCommand(ctx context.Context, c *bootstrap.Container, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/new":
		id, err := newSession(ctx, c)
		if err != nil {
			return false, err
		}
		sessionId = id
		color.Cyan("Session %s", sessionId)
	case "/history":
		turns, err := c.ChatService.ListTurns(ctx, sessionId, historyN)
		if err != nil {
			return false, err
		}
		for _, t := range turns {
			printer := color.GreenString
			if t.Role == "user" {
				printer = color.YellowString
			}
			if t.IsError {
				printer = color.RedString
			}
			fmt.Printf("%s %s\n", printer("[%d %s]", t.Seq, t.Role), t.Content)
		}
	case "/link":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /link <registered-id>")
		}
		res, err := c.SessionService.LinkIdentity(ctx, &dto.LinkIdentityRequest{AnonymousId: ownerId, RegisteredId: fields[1]})
		if err != nil {
			return false, err
		}
		ownerId, ownerKind = res.RegisteredId, "registered"
		color.Cyan("Linked %d session(s) to %s", len(res.Migrated), res.RegisteredId)
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}

func newSession(ctx context.Context, c *bootstrap.Container) (string, error) {
	res, err := c.SessionService.CreateSession(ctx, &dto.CreateSessionRequest{OwnerId: ownerId, OwnerKind: ownerKind})
	if err != nil {
		return "", err
	}
	return res.SessionId.String(), nil
}

func runLink(cmd *cobra.Command, args []string) error {
	c, err := newContainer(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.SessionService.LinkIdentity(cmd.Context(), &dto.LinkIdentityRequest{AnonymousId: args[0], RegisteredId: args[1]})
	if err != nil {
		return err
	}
	color.Green("Linked %d session(s) to %s", len(res.Migrated), res.RegisteredId)
	return nil
}
