package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"metaview/internal/action"
	"metaview/internal/cache"
	"metaview/internal/console"
	"metaview/internal/core/apperror"
	"metaview/internal/core/appctx"
	"metaview/internal/dashboard"
	"metaview/internal/form"
	"metaview/internal/page"
	"metaview/internal/relation"
	"metaview/internal/rules"
	"metaview/internal/schema"
	"metaview/internal/session"
	"metaview/internal/transport"
	"metaview/pkg/logger"
)

// env is the wired application: engines, transport, state.
type env struct {
	app        *appctx.App
	store      *session.Store
	client     *transport.Client
	schemas    *cache.SchemaCache
	dispatcher *action.Dispatcher
	pages      *page.Engine
	forms      *form.Engine
	dashboards *dashboard.Engine
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
}

type buildOptions struct {
	assumeYes bool
}

func build(log *logger.Logger, opts buildOptions) (*env, error) {
	statePath := defaultStatePath()
	if err := os.MkdirAll(filepath.Dir(statePath), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	store, err := session.Open(statePath)
	if err != nil {
		return nil, err
	}

	app := &appctx.App{
		Notifier: console.Notify{},
		Sessions: store,
		OnAuthFailure: func() {
			fmt.Fprintln(os.Stderr, "session expired, run `metaview login` again")
		},
	}

	client, err := transport.New(transport.Config{
		BaseURL:       getEnv("METAVIEW_SERVER", "http://localhost:8080/api"),
		Sessions:      store,
		OnAuthFailure: app.OnAuthFailure,
		Timeout:       getEnvDuration("METAVIEW_TIMEOUT", 30*time.Second),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	ruleEngine, err := rules.New()
	if err != nil {
		store.Close()
		return nil, err
	}

	var confirm action.Confirmer = terminalConfirmer{}
	if opts.assumeYes {
		confirm = autoConfirmer{}
	}

	schemas := cache.New(client, store)
	dispatcher := action.New(app, client, ruleEngine, terminalNavigator{}, confirm)
	resolver := relation.New(client)

	e := &env{
		app:        app,
		store:      store,
		client:     client,
		schemas:    schemas,
		dispatcher: dispatcher,
		pages:      page.New(app, client, dispatcher),
		forms:      form.New(app, client, resolver),
		dashboards: dashboard.New(schemas),
	}
	e.forms.OnSaved = func(entity string, id any) {
		log.Debugw("saved", "entity", entity, "id", id)
	}
	return e, nil
}

// terminalConfirmer gates dangerous actions on an explicit y/N prompt.
type terminalConfirmer struct{}

func (terminalConfirmer) Confirm(prompt string) bool {
	fmt.Printf("%s, continue? [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// autoConfirmer accepts every prompt (--yes).
type autoConfirmer struct{}

func (autoConfirmer) Confirm(string) bool { return true }

// terminalNavigator surfaces navigation signals as console hints.
type terminalNavigator struct{}

func (terminalNavigator) NavigateCreate(entity string) {
	fmt.Printf("open create form: metaview form %s\n", entity)
}

func (terminalNavigator) NavigateEdit(entity string, id any) {
	fmt.Printf("open edit form: metaview form %s --id %v\n", entity, id)
}

func newRootCommand(log *logger.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "metaview",
		Short:         "Schema-driven console for UI-compiling backends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newLoginCommand(log),
		newLogoutCommand(log),
		newPortalCommand(log),
		newPageCommand(log),
		newFormCommand(log),
		newDashboardCommand(log),
		newActionCommand(log),
	)
	return root
}

func commandContext(log *logger.Logger) context.Context {
	ctx := logger.WithLogger(context.Background(), log)
	return appctx.WithTrace(ctx, appctx.NewTraceContext())
}

func newLoginCommand(log *logger.Logger) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Authenticate and persist the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := build(log, buildOptions{})
			if err != nil {
				return err
			}
			defer e.close()
			ctx := commandContext(log)

			var resp struct {
				Username string   `json:"username"`
				Roles    []string `json:"roles"`
				Token    string   `json:"token"`
			}
			err = e.client.Send(ctx, "POST", "/auth/login",
				map[string]string{"username": args[0], "password": password}, &resp)
			if err != nil {
				e.app.Notify(apperror.UserMessage(err), appctx.NotifyError)
				return err
			}
			err = e.store.Save(&appctx.Session{
				Username: resp.Username,
				Roles:    resp.Roles,
				Token:    resp.Token,
				IssuedAt: time.Now(),
			})
			if err != nil {
				return err
			}
			e.app.Notify("logged in as "+resp.Username, appctx.NotifySuccess)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (else METAVIEW_PASSWORD)")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if password == "" {
			password = os.Getenv("METAVIEW_PASSWORD")
		}
	}
	return cmd
}

func newLogoutCommand(log *logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := build(log, buildOptions{})
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.store.Clear(); err != nil {
				return err
			}
			e.app.Notify("logged out", appctx.NotifyInfo)
			return nil
		},
	}
}

func newPortalCommand(log *logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "portal",
		Short: "Show the navigation menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := build(log, buildOptions{})
			if err != nil {
				return err
			}
			defer e.close()
			ctx := commandContext(log)

			_, arena, err := e.schemas.Menu(ctx)
			if err != nil {
				e.app.Notify(apperror.UserMessage(err), appctx.NotifyError)
				return err
			}
			fmt.Print(console.Menu(arena))
			return nil
		},
	}
}

func newPageCommand(log *logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "page <entity>",
		Short: "Render an entity page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := build(log, buildOptions{})
			if err != nil {
				return err
			}
			defer e.close()
			ctx := commandContext(log)

			if err := e.pages.Load(ctx, args[0]); err != nil && !apperror.IsSchemaUnavailable(err) {
				return err
			}
			view := e.pages.Snapshot(ctx)
			if view.Layout == schema.LayoutGrid {
				// Grid pages delegate to the dashboard renderer.
				dash, err := e.dashboards.Load(ctx, args[0])
				if err != nil {
					e.app.Notify(apperror.UserMessage(err), appctx.NotifyError)
					return err
				}
				fmt.Print(console.Dashboard(dash))
				return nil
			}
			fmt.Print(console.Page(view))
			return nil
		},
	}
}

func newFormCommand(log *logger.Logger) *cobra.Command {
	var id string
	var sets []string
	var save bool
	cmd := &cobra.Command{
		Use:   "form <entity>",
		Short: "Render an entity form; optionally set fields and save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := build(log, buildOptions{})
			if err != nil {
				return err
			}
			defer e.close()
			ctx := commandContext(log)

			if err := e.forms.Load(ctx, args[0], id); err != nil {
				return err
			}
			for _, kv := range sets {
				name, raw, ok := strings.Cut(kv, "=")
				if !ok {
					return apperror.NewValidation("--set expects field=value")
				}
				if err := e.forms.Set(name, raw); err != nil {
					e.app.Notify(apperror.UserMessage(err), appctx.NotifyError)
					return err
				}
			}
			if save {
				if _, err := e.forms.Save(ctx); err != nil {
					return err
				}
				return nil
			}
			fmt.Print(console.Form(e.forms.Snapshot()))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "record id (edit instead of create)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "set a field, repeatable: --set name=value")
	cmd.Flags().BoolVar(&save, "save", false, "save the form state")
	return cmd
}

func newDashboardCommand(log *logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard <name>",
		Short: "Render a dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := build(log, buildOptions{})
			if err != nil {
				return err
			}
			defer e.close()
			ctx := commandContext(log)

			dash, err := e.dashboards.Load(ctx, args[0])
			if err != nil {
				e.app.Notify(apperror.UserMessage(err), appctx.NotifyError)
				return err
			}
			fmt.Print(console.Dashboard(dash))
			return nil
		},
	}
}

func newActionCommand(log *logger.Logger) *cobra.Command {
	var id string
	var yes bool
	cmd := &cobra.Command{
		Use:   "action <entity> <label>",
		Short: "Dispatch a schema-declared action",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := build(log, buildOptions{assumeYes: yes})
			if err != nil {
				return err
			}
			defer e.close()
			ctx := commandContext(log)

			entity, label := args[0], args[1]
			if err := e.pages.Load(ctx, entity); err != nil {
				return err
			}
			view := e.pages.Snapshot(ctx)

			var target *schema.ActionDescriptor
			for _, a := range append(view.PageActions, view.RowActions...) {
				if strings.EqualFold(a.Label, label) {
					target = &a
					break
				}
			}
			if target == nil {
				return apperror.NewValidation(fmt.Sprintf("page %s declares no action %q", entity, label))
			}

			var row map[string]any
			if id != "" {
				for _, r := range view.Rows {
					if fmt.Sprint(schema.RecordID(r)) == id {
						row = r
						break
					}
				}
				if row == nil {
					row = map[string]any{"id": id}
				}
			}
			if err := e.pages.HandleAction(ctx, *target, row); err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "row id for row-scoped actions")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm dangerous actions without prompting")
	return cmd
}
