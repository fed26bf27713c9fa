package main

import "testing"

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "worker", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %s: cmd=%v err=%v", name, cmd, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Fatalf("--config must be a persistent flag")
	}
	if root.Flags().Lookup("no-worker") == nil {
		t.Fatalf("bare scoolish should accept serve's --no-worker")
	}
}

func TestMigrateRejectsUnreadableConfig(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"migrate", "--config", t.TempDir() + "/absent.toml"})
	if err := root.Execute(); err == nil {
		t.Fatalf("migrate with a missing config file: want error")
	}
}
