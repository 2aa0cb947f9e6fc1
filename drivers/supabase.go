package drivers

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/creastat/dialogue"
	"github.com/supabase-community/supabase-go"
)

const defaultSupabaseTable = "dialogues"

// SupabaseConfig holds Supabase connection configuration.
//
// The table is expected to look like:
//
//	create table dialogues (
//	    chat_id  bigint primary key,
//	    dialogue text not null
//	);
type SupabaseConfig struct {
	URL    string
	APIKey string
	Table  string // Default: "dialogues"
}

// supabaseRow is one row of the dialogues table. Records are stored base64
// encoded so binary serializers survive the JSON transport.
type supabaseRow struct {
	ChatID   int64  `json:"chat_id"`
	Dialogue string `json:"dialogue"`
}

// SupabaseMedium stores dialogues in a Postgres table through PostgREST.
// Exclusivity per chat is enforced by BlobStore inside one process only.
type SupabaseMedium struct {
	client *supabase.Client
	table  string
}

// NewSupabaseMedium creates a new Supabase medium.
func NewSupabaseMedium(cfg SupabaseConfig) (*SupabaseMedium, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: supabase URL is required", dialogue.ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: supabase API key is required", dialogue.ErrInvalidConfig)
	}
	if cfg.Table == "" {
		cfg.Table = defaultSupabaseTable
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &SupabaseMedium{client: client, table: cfg.Table}, nil
}

// NewSupabaseStore creates a Supabase-backed dialogue store.
func NewSupabaseStore[D any](cfg SupabaseConfig, serializer dialogue.Serializer[D]) (*BlobStore[D], error) {
	medium, err := NewSupabaseMedium(cfg)
	if err != nil {
		return nil, err
	}
	return NewBlobStore(medium, serializer), nil
}

func (m *SupabaseMedium) Name() string { return "supabase" }

func (m *SupabaseMedium) Load(_ context.Context, id dialogue.ChatID) ([]byte, bool, error) {
	var rows []supabaseRow
	_, err := m.client.From(m.table).
		Select("chat_id,dialogue", "", false).
		Eq("chat_id", strconv.FormatInt(int64(id), 10)).
		ExecuteTo(&rows)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get dialogue: %w", err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	data, err := base64.StdEncoding.DecodeString(rows[0].Dialogue)
	if err != nil {
		return nil, false, fmt.Errorf("%w: base64: %v", dialogue.ErrSerialization, err)
	}
	return data, true, nil
}

func (m *SupabaseMedium) Save(_ context.Context, id dialogue.ChatID, data []byte) error {
	row := supabaseRow{
		ChatID:   int64(id),
		Dialogue: base64.StdEncoding.EncodeToString(data),
	}
	_, _, err := m.client.From(m.table).
		Upsert(row, "chat_id", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to upsert dialogue: %w", err)
	}
	return nil
}

func (m *SupabaseMedium) Delete(_ context.Context, id dialogue.ChatID) error {
	_, _, err := m.client.From(m.table).
		Delete("minimal", "").
		Eq("chat_id", strconv.FormatInt(int64(id), 10)).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete dialogue: %w", err)
	}
	return nil
}

// Close is a no-op; the Supabase client holds no connections of its own.
func (m *SupabaseMedium) Close() error { return nil }

var _ Medium = (*SupabaseMedium)(nil)
