package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/hyoshida/estatesync/internal/merge"
	"github.com/hyoshida/estatesync/internal/model"
)

// Login prompts for credentials and opens a session against the sync server.
func (a *App) Login(ctx context.Context) error {
	staffID, err := GetSimpleText(a.reader, "Staff ID", os.Stdout)
	if err != nil {
		return err
	}
	password, err := GetPassword(os.Stdout)
	if err != nil {
		return err
	}

	if err := a.syncer.Login(ctx, a.config.StoreID, staffID, string(password)); err != nil {
		fmt.Println("Login failed:", err)
		return err
	}
	a.staffID = staffID
	fmt.Println("Logged in.")
	return nil
}

// Logout drops the session. Local records are untouched.
func (a *App) Logout(ctx context.Context) error {
	a.syncer.EndSession()
	a.staffID = ""
	fmt.Println("Logged out.")
	return nil
}

func parseKind(args []string) (model.Kind, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("kind required (one of %v)", model.Kinds)
	}
	kind := model.Kind(args[0])
	if !kind.Valid() {
		return "", nil, fmt.Errorf("unknown kind %q", args[0])
	}
	return kind, args[1:], nil
}

// List prints the live records of one kind, newest first.
func (a *App) List(ctx context.Context, args []string) error {
	kind, _, err := parseKind(args)
	if err != nil {
		fmt.Println(err)
		return err
	}

	recs, err := a.store.ReadLive(ctx, kind)
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	merge.SortNewestFirst(recs)

	if len(recs) == 0 {
		fmt.Println("(empty)")
		return nil
	}
	for _, r := range recs {
		fmt.Printf("%s  %s  %s\n", r.ID, r.LastModified().Format("2006-01-02 15:04"), recordLabel(r))
	}
	return nil
}

// recordLabel picks a human-readable field for the listing.
func recordLabel(r model.Record) string {
	for _, key := range []string{"name", "title", "text", "customerName"} {
		if v := r.StringAttr(key); v != "" {
			return v
		}
	}
	return ""
}

// Add prompts for the main field of a new record and stores it.
func (a *App) Add(ctx context.Context, args []string) error {
	kind, _, err := parseKind(args)
	if err != nil {
		fmt.Println(err)
		return err
	}

	var key string
	switch kind {
	case model.KindProperties:
		key = "name"
	case model.KindMemos:
		key = "text"
	default:
		key = "title"
	}

	value, err := GetMultiline(a.reader, fmt.Sprintf("Enter %s", key), os.Stdout)
	if err != nil {
		return err
	}

	rec, err := a.store.Upsert(ctx, kind, model.Record{Attrs: map[string]any{key: value}})
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	fmt.Println("Created", rec.ID)
	return nil
}

// Delete tombstones one record.
func (a *App) Delete(ctx context.Context, args []string) error {
	kind, rest, err := parseKind(args)
	if err != nil {
		fmt.Println(err)
		return err
	}
	if len(rest) == 0 {
		fmt.Println("Usage: delete <kind> <id>")
		return fmt.Errorf("id required")
	}

	ok, err := a.store.SoftDelete(ctx, kind, rest[0])
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	if !ok {
		fmt.Println("Not found (or already deleted).")
		return nil
	}
	fmt.Println("Deleted. It stays restorable until the next cleanup.")
	return nil
}

// Restore clears a tombstone.
func (a *App) Restore(ctx context.Context, args []string) error {
	kind, rest, err := parseKind(args)
	if err != nil {
		fmt.Println(err)
		return err
	}
	if len(rest) == 0 {
		fmt.Println("Usage: restore <kind> <id>")
		return fmt.Errorf("id required")
	}

	ok, err := a.store.Restore(ctx, kind, rest[0])
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	if !ok {
		fmt.Println("Nothing to restore.")
		return nil
	}
	fmt.Println("Restored.")
	return nil
}

// Trash lists recently deleted records.
func (a *App) Trash(ctx context.Context) error {
	items, err := a.store.RecentlyDeleted(ctx, a.config.RetentionDays)
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	if len(items) == 0 {
		fmt.Println("Trash is empty.")
		return nil
	}
	for _, it := range items {
		fmt.Printf("%s  %s  deleted %s  %s\n",
			it.Kind, it.Record.ID,
			it.Record.DeletedTime().Format("2006-01-02 15:04"),
			recordLabel(it.Record))
	}
	return nil
}

// Sync runs one full sync pass right now.
func (a *App) Sync(ctx context.Context) error {
	if err := a.syncer.SyncNow(ctx); err != nil {
		fmt.Println("Sync failed:", err)
		return err
	}
	fmt.Println("Sync complete.")
	return nil
}

// Health reports local storage usage and may trigger a cleanup.
func (a *App) Health(ctx context.Context) error {
	h, err := a.cleanup.CheckHealth(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return err
	}
	fmt.Printf("Storage usage: %.0f%%\n", h.UsageRatio*100)
	if h.Warning {
		fmt.Println("Warning: storage is nearly full. Old deleted records are being cleaned up.")
	}
	return nil
}

// Theme shows or sets the UI theme preference.
func (a *App) Theme(ctx context.Context, args []string) error {
	if len(args) == 0 {
		theme, err := a.store.Theme(ctx)
		if err != nil {
			fmt.Println("Error:", err)
			return err
		}
		fmt.Println("Theme:", theme)
		return nil
	}

	if err := a.store.SetTheme(ctx, args[0]); err != nil {
		fmt.Println("Error:", err)
		return err
	}
	fmt.Println("Theme set to", args[0])
	return nil
}
