package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"naskah/config"
	"naskah/internal/client/export"
	"naskah/internal/client/history"
	"naskah/internal/client/library"
	"naskah/internal/document/model"
)

const timeLayout = "2006-01-02 15:04"

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "naskah",
	Short:        "Versioned document editor",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir, configPath, err := config.DefaultClientPaths()
		if err != nil {
			return err
		}
		cfg := config.NewClientConfig(baseDir)
		if url, _ := cmd.Flags().GetString("api-url"); url != "" {
			cfg.APIURL = url
		}
		if err := config.InitClientConfig(configPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		fmt.Printf("Configuration initialized at %s\n", configPath)
		fmt.Printf("API URL:    %s\n", cfg.APIURL)
		fmt.Printf("Session DB: %s\n", cfg.SessionDB)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		schema := "up to date"
		if err := a.sessions.CheckSchema(); err != nil {
			schema = err.Error()
		}
		fmt.Printf("API URL:    %s\n", a.cfg.APIURL)
		fmt.Printf("Session DB: %s (%s)\n", a.cfg.SessionDB, schema)
		fmt.Printf("Log level:  %s\n", a.cfg.LogLevel)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and remember the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.editor.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s\n", st.User.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the remembered session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.editor.Logout(cmd.Context())
		fmt.Println("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		st, ok, err := a.editor.Resume(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Not logged in")
			return nil
		}
		fmt.Printf("%s (%s, %s)\n", st.User.Username, st.User.ID, st.User.Role)
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		sortFlag, _ := cmd.Flags().GetString("sort")
		orderFlag, _ := cmd.Flags().GetString("order")

		field, err := library.ParseSortField(sortFlag)
		if err != nil {
			return err
		}
		dir, err := library.ParseDirection(orderFlag)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.resume(cmd.Context()); err != nil {
			return err
		}

		docs := library.View{Query: search, Field: field, Direction: dir}.Apply(a.editor.State().Documents)
		if len(docs) == 0 {
			if search != "" {
				fmt.Println("No documents match.")
			} else {
				fmt.Println("No documents yet. Create one!")
			}
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tVERSION\tUPDATED")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.ID, library.DisplayTitle(d), d.Metadata.Version,
				d.Metadata.UpdatedAt.Local().Format(timeLayout))
		}
		return w.Flush()
	},
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a document",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.resume(cmd.Context()); err != nil {
			return err
		}

		st, err := a.editor.New(cmd.Context())
		if err != nil {
			return err
		}
		if st.Selected != nil {
			fmt.Println(st.Selected.ID)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a document's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.open(cmd.Context(), args[0]); err != nil {
			return err
		}

		st, err := a.editor.Reload(cmd.Context())
		if err != nil {
			return err
		}
		doc := st.Selected
		fmt.Fprintf(os.Stderr, "%s (version %d, updated %s)\n", library.DisplayTitle(*doc), doc.Metadata.Version,
			doc.Metadata.UpdatedAt.Local().Format(timeLayout))
		fmt.Println(doc.Content)
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save <id>",
	Short: "Save new content (from --file or stdin) as the next version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(cmd)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.open(cmd.Context(), args[0]); err != nil {
			return err
		}

		st, err := a.editor.Save(cmd.Context(), content)
		if err != nil {
			return err
		}
		fmt.Printf("Saved version %d\n", st.Selected.Metadata.Version)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Change a document's title",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.open(cmd.Context(), args[0]); err != nil {
			return err
		}

		st, err := a.editor.ChangeTitle(cmd.Context(), strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("Renamed to %q\n", st.Selected.Title)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List a document's versions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.open(cmd.Context(), args[0]); err != nil {
			return err
		}

		a.history.Open()
		entries := a.history.Entries()
		if len(entries) == 0 {
			fmt.Println("No versions yet.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\n", e.Label, e.Timestamp)
		}
		return w.Flush()
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <id> <version>",
	Short: "Restore a version as the newest one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.open(cmd.Context(), args[0]); err != nil {
			return err
		}

		a.history.Open()
		for _, v := range a.history.Versions() {
			if v.Version != number {
				continue
			}
			st, err := a.history.Restore(cmd.Context(), v)
			if err != nil {
				return err
			}
			fmt.Printf("Restored %s as version %d\n", history.Label(v), st.Selected.Metadata.Version)
			return nil
		}
		return fmt.Errorf("document %s has no version %d", args[0], number)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a document as HTML, Markdown or text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.open(cmd.Context(), args[0]); err != nil {
			return err
		}

		doc := a.editor.State().Selected
		rendered, err := export.Render(format, doc.Title, doc.Content)
		if err != nil {
			return err
		}
		if out == "-" {
			fmt.Print(rendered)
			return nil
		}
		if out == "" {
			out = export.Filename(doc.Title, format)
		}
		if err := os.WriteFile(out, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		fmt.Printf("Exported to %s\n", out)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a document and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.resume(cmd.Context()); err != nil {
			return err
		}

		doc, ok := a.editor.State().Document(args[0])
		if !ok {
			return fmt.Errorf("no document %s", args[0])
		}
		if !force && !confirm(fmt.Sprintf("Delete %q? This cannot be undone. [y/N] ", library.DisplayTitle(doc))) {
			fmt.Println("Cancelled")
			return nil
		}
		if _, err := a.editor.Delete(cmd.Context(), doc.ID); err != nil {
			return err
		}
		fmt.Println("Deleted")
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow changes to your documents made from anywhere",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if _, ok, err := a.editor.Resume(cmd.Context()); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("not logged in (run naskah login)")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		fmt.Fprintln(os.Stderr, "Watching for changes, Ctrl-C to stop")
		return a.client.Watch(ctx, func(e model.ChangeEvent) {
			switch e.Type {
			case model.DocumentDeletedEvent:
				fmt.Printf("%s  %-16s %s\n", e.At.Local().Format(timeLayout), e.Type, e.DocumentID)
			default:
				fmt.Printf("%s  %-16s %s  %q v%d\n", e.At.Local().Format(timeLayout), e.Type, e.DocumentID, e.Title, e.Version)
			}
		})
	},
}

func readPassword(cmd *cobra.Command) (string, error) {
	if fromStdin, _ := cmd.Flags().GetBool("password-stdin"); fromStdin || !term.IsTerminal(int(os.Stdin.Fd())) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

func readContent(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("file")
	var (
		b   []byte
		err error
	)
	if path == "" || path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading content: %w", err)
	}
	return string(b), nil
}

func confirm(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func init() {
	configInitCmd.Flags().String("api-url", "", "Document store URL")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	loginCmd.Flags().Bool("password-stdin", false, "Read the password from stdin")

	lsCmd.Flags().StringP("search", "s", "", "Only titles containing this text")
	lsCmd.Flags().String("sort", string(library.SortTitle), "Sort by title, updatedAt or version")
	lsCmd.Flags().String("order", string(library.Asc), "asc or desc")

	saveCmd.Flags().StringP("file", "f", "", "Read content from this file instead of stdin")

	exportCmd.Flags().String("format", "html", "html, md or txt")
	exportCmd.Flags().StringP("out", "o", "", "Output file (default derived from the title, - for stdout)")

	rmCmd.Flags().Bool("force", false, "Do not ask for confirmation")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(watchCmd)
}
