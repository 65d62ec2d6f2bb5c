// Package main provides the studybuddy CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/studybuddy/tutorengine/cli"
)

var (
	// Global flags
	provider string
	dbPath   string
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "studybuddy",
		Short: "AI tutoring engine for South African CAPS and IEB curricula",
		Long: `StudyBuddy is an AI tutor for grades 8-12 built around guided questioning.

The tutor streams its replies as they are generated, keeps a durable
transcript of every conversation, and titles conversations automatically
after the first exchange.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "openrouter", "LLM provider (openrouter, gemini, anthropic)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", ".studybuddy/tutor.db", "Database path for transcripts")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(conversationsCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func chatCmd() *cobra.Command {
	var subject string
	var grade int
	var studentID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive tutoring session",
		Long: `Start an interactive tutoring session for one subject and grade.

Replies stream to the terminal as they are generated. Type 'new' at the
prompt to abandon the current conversation and start fresh; the previous
conversation stays in the transcript store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider:  provider,
				Subject:   subject,
				Grade:     grade,
				StudentID: studentID,
				DBPath:    dbPath,
			}
			return cli.Chat(context.Background(), opts)
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "Mathematics", "Subject being tutored")
	cmd.Flags().IntVarP(&grade, "grade", "g", 10, "Student grade (8-12)")
	cmd.Flags().StringVar(&studentID, "student", "local", "Student ID for transcript ownership")

	return cmd
}

func conversationsCmd() *cobra.Command {
	var studentID string

	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List a student's stored conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				StudentID: studentID,
				DBPath:    dbPath,
			}
			return cli.Conversations(context.Background(), opts)
		},
	}

	cmd.Flags().StringVar(&studentID, "student", "local", "Student ID")

	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [conversation-id]",
		Short: "Print the stored turns of one conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				DBPath: dbPath,
			}
			return cli.History(context.Background(), opts, args[0])
		},
	}

	return cmd
}
