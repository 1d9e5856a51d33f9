package cliconfig

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"memory", Config{Store: StoreMemory}},
		{"file", Config{Store: StoreFile, StateDir: filepath.Join(dir, "state")}},
		{"sqlite", Config{Store: StoreSQLite, SQLitePath: filepath.Join(dir, "db", "reqguard.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closer, err := OpenStore(ctx, tt.cfg)
			if err != nil {
				t.Fatalf("OpenStore() error = %v", err)
			}
			defer closer.Close()

			if err := store.Write(ctx, "k", []byte("v")); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			got, err := store.Read(ctx, "k")
			if err != nil || string(got) != "v" {
				t.Errorf("Read() = %q, %v", got, err)
			}
		})
	}

	if _, _, err := OpenStore(ctx, Config{Store: "tape"}); err == nil {
		t.Error("OpenStore() accepted an unknown store")
	}
}
