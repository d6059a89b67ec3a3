package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/prospekt/internal/assistant"
	"github.com/kalambet/prospekt/internal/config"
	"github.com/kalambet/prospekt/internal/prospectlist"
	"github.com/kalambet/prospekt/internal/session"
	"github.com/kalambet/prospekt/internal/storage"
)

// --- prospects ---

var prospectsCmd = &cobra.Command{
	Use:   "prospects",
	Short: "Browse prospects",
}

var prospectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prospects with filters, sorting and pages",
	Long: `List prospects with filters, sorting and pages.

Examples:
  prospekt prospects list --search acme
  prospekt prospects list --status qualified --sort priority --dir desc
  prospekt prospects list --page 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		status, _ := cmd.Flags().GetString("status")
		priority, _ := cmd.Flags().GetString("priority")
		sortBy, _ := cmd.Flags().GetString("sort")
		dir, _ := cmd.Flags().GetString("dir")
		page, _ := cmd.Flags().GetInt("page")

		field, ok := prospectlist.ParseSortField(sortBy)
		if !ok {
			return fmt.Errorf("unknown sort field %q", sortBy)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := prospectlist.Query{
			Filter: prospectlist.Filter{Search: search, Status: status, Priority: priority},
			Sort:   prospectlist.Sort{Field: field, Dir: prospectlist.Direction(dir)},
			Page:   page,
		}
		result, err := fetchProspectPage(cmd.Context(), client, q)
		if err != nil {
			return err
		}
		return renderProspects(os.Stdout, result)
	},
}

// fetchProspectPage loads every prospect and runs the list pipeline locally,
// the same way the dashboard table does.
func fetchProspectPage(ctx context.Context, client *apiClient, q prospectlist.Query) (prospectlist.Page, error) {
	resp, err := client.get(ctx, "/api/prospects")
	if err != nil {
		return prospectlist.Page{}, err
	}
	var all []storage.Prospect
	if err := decodeJSON(resp, &all); err != nil {
		return prospectlist.Page{}, err
	}
	return prospectlist.Run(all, q), nil
}

func renderProspects(w io.Writer, page prospectlist.Page) error {
	if page.Total == 0 {
		fmt.Fprintln(w, "No prospects found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMPANY\tCONTACT\tSTATUS\tPRIORITY\tLAST EXCHANGE")
	for _, p := range page.Items {
		last := "-"
		if p.LastExchange != nil {
			last = p.LastExchange.Local().Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.CompanyName, p.ContactName,
			badge(prospectlist.StatusBadge(p.Status)),
			badge(prospectlist.PriorityBadge(p.Priority)),
			last)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nPage %d/%d, %d prospects\n", page.Page, page.TotalPages, page.Total)
	return nil
}

var prospectsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a prospect with its recent history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		pc, err := fetchProspectContext(cmd.Context(), client, args[0], limit)
		if err != nil {
			return err
		}
		renderProspect(os.Stdout, pc)
		return nil
	},
}

func fetchProspectContext(ctx context.Context, client *apiClient, id string, limit int) (assistant.ProspectContext, error) {
	base := "/api/prospects/" + url.PathEscape(id)

	resp, err := client.get(ctx, base)
	if err != nil {
		return assistant.ProspectContext{}, err
	}
	var p storage.Prospect
	if err := decodeJSON(resp, &p); err != nil {
		return assistant.ProspectContext{}, err
	}
	pc := assistant.ProspectContext{Prospect: &p}

	suffix := fmt.Sprintf("?limit=%d", limit)
	if resp, err := client.get(ctx, base+"/exchanges"+suffix); err == nil {
		if err := decodeJSON(resp, &pc.Exchanges); err != nil {
			printWarning("loading exchanges: %v", err)
		}
	}
	if resp, err := client.get(ctx, base+"/notes"+suffix); err == nil {
		if err := decodeJSON(resp, &pc.Notes); err != nil {
			printWarning("loading notes: %v", err)
		}
	}
	return pc, nil
}

func renderProspect(w io.Writer, pc assistant.ProspectContext) {
	p := pc.Prospect
	fmt.Fprintf(w, "%s  %s\n", colorize(colorBold, p.CompanyName), p.ContactName)
	fmt.Fprintf(w, "  Status:   %s\n", badge(prospectlist.StatusBadge(p.Status)))
	fmt.Fprintf(w, "  Priority: %s\n", badge(prospectlist.PriorityBadge(p.Priority)))
	for _, f := range []struct {
		label string
		value *string
	}{
		{"Email", p.Email},
		{"Phone", p.Phone},
		{"Website", p.Website},
		{"Need", p.PotentialNeed},
		{"Confirmed", p.ConfirmedNeed},
	} {
		if f.value != nil && *f.value != "" {
			fmt.Fprintf(w, "  %-9s %s\n", f.label+":", *f.value)
		}
	}

	if len(pc.Exchanges) > 0 {
		fmt.Fprintln(w, "\nExchanges:")
		for _, e := range pc.Exchanges {
			subject := ""
			if e.Subject != nil {
				subject = *e.Subject
			}
			fmt.Fprintf(w, "  %s  %-8s %s\n", e.CreatedAt.Local().Format("2006-01-02"), e.Type, subject)
		}
	}
	if len(pc.Notes) > 0 {
		fmt.Fprintln(w, "\nNotes:")
		for _, n := range pc.Notes {
			pin := " "
			if n.IsPinned {
				pin = "*"
			}
			fmt.Fprintf(w, "  %s %s\n", pin, n.Content)
		}
	}
}

func init() {
	prospectsListCmd.Flags().String("search", "", "match company, contact or email")
	prospectsListCmd.Flags().String("status", "", "only this status")
	prospectsListCmd.Flags().String("priority", "", "only this priority")
	prospectsListCmd.Flags().String("sort", string(prospectlist.SortCompany), "sort field: company_name, contact_name, status, priority, last_exchange")
	prospectsListCmd.Flags().String("dir", string(prospectlist.Asc), "sort direction: asc or desc")
	prospectsListCmd.Flags().Int("page", 1, "page number")
	prospectsShowCmd.Flags().Int("limit", assistant.DefaultHistoryLimit, "number of exchanges and notes to show")
	prospectsCmd.AddCommand(prospectsListCmd)
	prospectsCmd.AddCommand(prospectsShowCmd)
}

// --- assistant ---

var assistantCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Chat with the sales assistant",
	Long: `Chat with the sales assistant.

With --prospect the conversation is about that prospect: the assistant
greets you and prepares a call analysis in the background. Type /quit or
press Ctrl-D to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prospectID, _ := cmd.Flags().GetString("prospect")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		pctx := assistant.PanelContext{ProspectID: prospectID}
		if prospectID != "" {
			pc, err := fetchProspectContext(ctx, client, prospectID, assistant.DefaultHistoryLimit)
			if err != nil {
				return err
			}
			pctx.ProspectContext = pc
		}

		return runAssistant(ctx, remoteAsker{client: client}, pctx, os.Stdin, os.Stdout)
	},
}

// runAssistant drives a panel from line-oriented input until EOF or /quit.
func runAssistant(ctx context.Context, asker assistant.Asker, pctx assistant.PanelContext, in io.Reader, out io.Writer) error {
	panel := assistant.NewPanel(asker, pctx, assistant.WithOnMessage(func(m assistant.Message) {
		printMessage(out, m)
	}))
	defer panel.Wait()
	defer panel.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := panel.Open(ctx); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, colorize(colorBold, "> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}
		if _, err := panel.Send(ctx, line); err != nil {
			printError("%v", err)
		}
	}
}

func printMessage(out io.Writer, m assistant.Message) {
	switch m.Role {
	case assistant.RoleUser:
		// Already echoed by the terminal.
	case assistant.RoleSystem:
		fmt.Fprintf(out, "\n%s\n%s\n\n", colorize(colorCyan, "[analyse]"), m.Content)
	default:
		fmt.Fprintf(out, "%s %s\n", colorize(colorGreen, "assistant:"), m.Content)
	}
}

func init() {
	assistantCmd.Flags().String("prospect", "", "prospect ID to discuss")
}

// --- knowledge ---

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Browse knowledge docs",
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge docs with excerpts",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		for _, name := range []string{"search", "category", "tag"} {
			if v, _ := cmd.Flags().GetString(name); v != "" {
				q.Set(name, v)
			}
		}
		path := "/api/knowledge-docs"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var docs []struct {
			ID       string `json:"id"`
			Title    string `json:"title"`
			Category string `json:"category"`
			Excerpt  string `json:"excerpt"`
		}
		if err := decodeJSON(resp, &docs); err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("No knowledge docs found.")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%s  %s  [%s]\n", d.ID, colorize(colorBold, d.Title), prospectlist.CategoryLabel(d.Category))
			if d.Excerpt != "" {
				fmt.Printf("    %s\n", d.Excerpt)
			}
		}
		return nil
	},
}

var knowledgeRenderCmd = &cobra.Command{
	Use:   "render <id>",
	Short: "Print a knowledge doc rendered as HTML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/knowledge-docs/"+url.PathEscape(args[0])+"/html")
		if err != nil {
			return err
		}

		var page struct {
			Title string `json:"title"`
			HTML  string `json:"html"`
		}
		if err := decodeJSON(resp, &page); err != nil {
			return err
		}
		fmt.Print(page.HTML)
		return nil
	},
}

func init() {
	knowledgeListCmd.Flags().String("search", "", "match title or content")
	knowledgeListCmd.Flags().String("category", "", "only this category")
	knowledgeListCmd.Flags().String("tag", "", "only docs with this tag")
	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgeRenderCmd)
}

// --- auth ---

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage session tokens",
}

var authTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a session token signed with auth.jwt_secret",
	Long: `Issue a session token signed with auth.jwt_secret.

The token can be posted to /auth/session or exported as ` + sessionTokenEnv + `
for the other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		if user == "" {
			return fmt.Errorf("--user is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		v, err := session.NewVerifier(cfg.Auth.JWTSecret)
		if err != nil {
			return fmt.Errorf("%w: set it with `prospekt config set-secret auth.jwt_secret <value>`", err)
		}
		token, err := v.Issue(user, email, name, ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	authTokenCmd.Flags().String("user", "", "user ID (token subject)")
	authTokenCmd.Flags().String("email", "", "user email")
	authTokenCmd.Flags().String("name", "", "display name")
	authTokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	authCmd.AddCommand(authTokenCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		jsonOut, _ := cmd.Flags().GetBool("json")
		keys := config.ShowAll(cfg)
		if jsonOut {
			out := make(map[string]string, len(keys))
			for _, k := range keys {
				out[k.Key] = k.Value
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		for _, k := range keys {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorGray, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store assistant.api_key or auth.jwt_secret in the secret store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configShowCmd.Flags().Bool("json", false, "print as JSON")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}
