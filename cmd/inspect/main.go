package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"autoinspect/internal/app"
	"autoinspect/internal/config"
	"autoinspect/internal/encryption"
	"autoinspect/internal/inspection"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies environment overrides.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates an InspectApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Submit", "History").
func newApp(ctx context.Context, operation string) (*app.InspectApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewInspectApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// splitAssignment parses "field=value".
func splitAssignment(s string) (string, string, error) {
	field, value, ok := strings.Cut(s, "=")
	field = strings.TrimSpace(field)
	if !ok || field == "" {
		return "", "", fmt.Errorf("expected FIELD=VALUE, got %q", s)
	}
	return field, value, nil
}

func parseHandoff(s string) (*inspection.Handoff, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "red":
		return &inspection.Handoff{HasRed: true}, nil
	case "green":
		return &inspection.Handoff{HasGreen: true}, nil
	case "both":
		return &inspection.Handoff{HasRed: true, HasGreen: true}, nil
	case "none":
		return &inspection.Handoff{}, nil
	}
	return nil, fmt.Errorf("handoff must be red, green, both or none, got %q", s)
}

var rootCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Vehicle inspection report client",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return app.LoadDotEnv(".env")
	},
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
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		inspectorID := uuid.New().String()
		cfg := config.NewConfig(inspectorID, defaults["base_dir"])
		if url, _ := cmd.Flags().GetString("portal-url"); url != "" {
			cfg.Portal.BaseURL = url
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Inspector ID: %s\n", inspectorID)
		fmt.Printf("Base Dir:     %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		token := "(not set)"
		if cfg.Portal.Token != "" {
			token = "(set)"
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Inspector ID: %s\n", cfg.InspectorID)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Portal:       %s  token %s\n", cfg.Portal.BaseURL, token)
		fmt.Printf("Database:     %s\n", cfg.Database.Type)
		fmt.Printf("Archive:      %s\n", cfg.Archive.Type)
		fmt.Printf("Encryption:   %s\n", cfg.Encryption.Type)
		fmt.Printf("Metrics:      %s\n", cfg.Metrics.Type)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the receipt encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return fmt.Errorf("creating encryptor: %w", err)
		}
		if enc == nil {
			return fmt.Errorf("encryption is disabled in the config")
		}

		pass, err := readPassphrase("New passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := enc.Setup(pass); err != nil {
			return fmt.Errorf("setting up keys: %w", err)
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage the receipt archive",
}

var archiveCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the archive is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ArchiveCheck")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.CheckArchive(); err != nil {
			return fmt.Errorf("archive check failed: %w", err)
		}
		fmt.Println("Archive OK")
		return nil
	},
}

// fields command
var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List form fields and where they are sent",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")

		for _, f := range inspection.Fields() {
			if category != "" && string(f.Category) != category {
				continue
			}
			wire := f.Key
			if f.Namespace != inspection.NSTop {
				wire = fmt.Sprintf("%s.%s.%s", f.Category, f.Namespace, f.Key)
			}
			extra := ""
			switch f.Kind {
			case inspection.KindChoice:
				extra = strings.Join(f.Choices, "|")
			case inspection.KindImage:
				extra = "part " + f.PartName()
			}
			fmt.Printf("%-24s %-8s %-44s %s\n", f.Name, f.Kind, wire, extra)
		}
		return nil
	},
}

// task command
var taskCmd = &cobra.Command{
	Use:   "task TASK_ID",
	Short: "View a task and the color it hands to its form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Task")
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := a.Task(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Task:       %s\n", task.ID)
		fmt.Printf("Inspection: %s\n", task.InspectionID)
		fmt.Printf("Status:     %s\n", task.Status)
		if h := task.Handoff(); h != nil {
			fmt.Printf("Request:    red=%v green=%v -> %s\n", h.HasRed, h.HasGreen, h.ColorTag())
		}
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show INSPECTION_ID",
	Short: "View the stored inspection report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp(cmd.Context(), "Show")
		if err != nil {
			return err
		}
		defer a.Close()

		form, warnings, err := a.Show(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		for _, w := range warnings {
			fmt.Printf("warning: %s\n", w)
		}
		for _, f := range inspection.Fields() {
			if f.Kind == inspection.KindColorTag {
				continue
			}
			if f.Kind == inspection.KindImage {
				for _, ref := range form.Attachments(f.Name) {
					fmt.Printf("%-24s %s\n", f.Name, ref.URL)
				}
				continue
			}
			v, _ := form.Get(f.Name)
			if !all && v.Equal(f.Default) {
				continue
			}
			fmt.Printf("%-24s %s\n", f.Name, v)
		}
		fmt.Printf("%-24s %s\n", "color", form.ColorTag())
		return nil
	},
}

// submit command
var submitCmd = &cobra.Command{
	Use:   "submit INSPECTION_ID",
	Short: "Edit and submit an inspection report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sets, _ := cmd.Flags().GetStringArray("set")
		attaches, _ := cmd.Flags().GetStringArray("attach")
		fresh, _ := cmd.Flags().GetBool("fresh")
		handoffFlag, _ := cmd.Flags().GetString("handoff")
		taskID, _ := cmd.Flags().GetString("task")
		colorFlag, _ := cmd.Flags().GetString("color")

		opts := app.SubmitOptions{
			InspectionID: args[0],
			Fresh:        fresh,
			Attachments:  make(map[string][]string),
		}

		for _, s := range sets {
			field, value, err := splitAssignment(s)
			if err != nil {
				return err
			}
			opts.Edits = append(opts.Edits, inspection.Edit{Field: field, Value: value})
		}
		if cmd.Flags().Changed("damage-notes") {
			v, _ := cmd.Flags().GetString("damage-notes")
			opts.Edits = append(opts.Edits, inspection.Edit{Field: inspection.FieldDamageNotes, Value: v})
		}
		if cmd.Flags().Changed("rust-notes") {
			v, _ := cmd.Flags().GetString("rust-notes")
			opts.Edits = append(opts.Edits, inspection.Edit{Field: inspection.FieldRustNotes, Value: v})
		}
		for _, s := range attaches {
			field, path, err := splitAssignment(s)
			if err != nil {
				return err
			}
			opts.Attachments[field] = append(opts.Attachments[field], path)
		}

		handoff, err := parseHandoff(handoffFlag)
		if err != nil {
			return err
		}
		opts.Handoff = handoff

		if colorFlag != "" {
			c, err := inspection.ParseColorTag(colorFlag)
			if err != nil {
				return err
			}
			opts.ColorTag = &c
		}

		a, err := newApp(cmd.Context(), "Submit")
		if err != nil {
			return err
		}
		defer a.Close()

		if taskID != "" && opts.Handoff == nil {
			task, err := a.Task(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			opts.Handoff = task.Handoff()
		}

		receipt, err := a.Submit(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("submit failed: %w", err)
		}

		fmt.Printf("Submitted inspection %s (%s, %d upload(s))\n", receipt.InspectionID, receipt.ColorTag, len(receipt.Uploads))
		fmt.Printf("Receipt: %s\n", receipt.ID)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %-10s  %s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.Parameters,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

// submissions command
var submissionsCmd = &cobra.Command{
	Use:   "submissions INSPECTION_ID",
	Short: "View local submission history of an inspection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Submissions")
		if err != nil {
			return err
		}
		defer a.Close()

		subs, err := a.Submissions(args[0])
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			fmt.Println("No submissions recorded.")
			return nil
		}

		for _, s := range subs {
			archived := "-"
			if s.ArchiveKey != "" {
				archived = s.ArchiveKey
			}
			fmt.Printf("%s  %s  %-5s  %d upload(s)  %s  %s\n",
				s.ID,
				s.SubmittedAt.Format("2006-01-02 15:04:05"),
				inspection.ColorTag(s.ColorTag),
				s.Uploads,
				s.Fingerprint,
				archived,
			)
		}
		return nil
	},
}

// receipt command
var receiptCmd = &cobra.Command{
	Use:   "receipt RECEIPT_ID",
	Short: "View an archived submission receipt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Receipt")
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.Receipt(args[0], func() (string, error) {
			return readPassphrase("Passphrase: ")
		})
		if err != nil {
			return err
		}

		fmt.Printf("Receipt:    %s\n", r.ID)
		fmt.Printf("Inspection: %s\n", r.InspectionID)
		fmt.Printf("Submitted:  %s\n", r.SubmittedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Color:      %s\n", r.ColorTag)
		fmt.Printf("Notes:      %q / %q\n", r.DamageNotes, r.RustNotes)
		for _, u := range r.Uploads {
			fmt.Printf("Upload:     %s  %s  %d bytes\n", u.Part, u.Name, u.Size)
		}

		categories := make([]string, 0, len(r.Documents))
		for c := range r.Documents {
			categories = append(categories, string(c))
		}
		sort.Strings(categories)
		for _, c := range categories {
			doc := r.Documents[inspection.Category(c)]
			if doc == nil {
				continue
			}
			for _, f := range inspection.CategoryFields(inspection.Category(c)) {
				if v, ok := doc.Lookup(f.Namespace, f.Key); ok && !v.Equal(f.Default) {
					fmt.Printf("  %-22s %s\n", f.Name, v)
				}
			}
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("portal-url", "", "Portal base URL")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)

	// archive subcommands
	archiveCmd.AddCommand(archiveCheckCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(fieldsCmd)
	fieldsCmd.Flags().StringP("category", "c", "", "Only list fields of this category")
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolP("all", "a", false, "Include fields still at their default")
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringArray("set", nil, "Set a field, FIELD=VALUE (repeatable)")
	submitCmd.Flags().StringArray("attach", nil, "Attach a file or directory, FIELD=PATH (repeatable)")
	submitCmd.Flags().Bool("fresh", false, "Start from defaults instead of the stored report")
	submitCmd.Flags().String("handoff", "", "Request color flags for a first visit: red, green, both or none")
	submitCmd.Flags().String("task", "", "Take the handoff from this task")
	submitCmd.Flags().String("color", "", "Override the color tag: green or red")
	submitCmd.Flags().String("damage-notes", "", "Damage notes")
	submitCmd.Flags().String("rust-notes", "", "Rust notes")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(submissionsCmd)
	rootCmd.AddCommand(receiptCmd)
}
