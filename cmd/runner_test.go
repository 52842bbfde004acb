package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/pitch/internal/contacts"
	"github.com/desertthunder/pitch/internal/models"
	"github.com/desertthunder/pitch/internal/repositories"
	"github.com/desertthunder/pitch/internal/services"
	"github.com/desertthunder/pitch/internal/shared"
	tu "github.com/desertthunder/pitch/internal/testing"
	"github.com/desertthunder/pitch/internal/validator"
	"github.com/google/go-cmp/cmp"
)

var contactSheet = []string{
	"Playlist Name",
	"Curator",
	"Mix A",
	"Curator A",
	"https://open.spotify.com/playlist/a",
	"POP, ROCK",
	"100",
	"a@example.com",
	"Mix B",
	"Curator B",
	"https://open.spotify.com/playlist/b",
	"FOLK, SOUL",
	"200",
	"b@example.com",
	"Mix Z",
	"Curator Z",
	"https://open.spotify.com/playlist/z",
	"JAZZ, BLUES",
	"c@example.org",
	"Mix Y",
	"https://open.spotify.com/playlist/y",
	"ROCK, PUNK, METAL",
}

// fakeResolver resolves example.com and example.org only.
type fakeResolver struct{}

func (fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if host == "example.com" || host == "example.org" {
		return []string{"93.184.216.34"}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func (fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	if name == "example.com" || name == "example.org" {
		return []*net.MX{{Host: "mx." + name + ".", Pref: 10}}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

type testEnv struct {
	dir     string
	config  string
	cfg     *shared.Config
	output  *bytes.Buffer
	mailer  *tu.MockMailer
	mailbox *tu.MockMailbox
	lookup  *tu.MockLookup
	runner  *Runner
}

func newTestEnv(t *testing.T, edit func(*shared.Config)) *testEnv {
	t.Helper()
	dir := t.TempDir()

	contactsPath := filepath.Join(dir, "contacts.txt")
	tu.MustWriteFile(t, contactsPath, strings.Join(contactSheet, "\n"))
	templatePath := filepath.Join(dir, "template.md")
	tu.MustWriteFile(t, templatePath, "---\nHi <<curator_name>>, pitching for **<<playlist_name>>**.\n")

	cfg := shared.DefaultConfig()
	cfg.Files = shared.FilesConfig{
		Contacts:      contactsPath,
		Template:      templatePath,
		ValidationCSV: filepath.Join(dir, "validation.csv"),
		FailuresCSV:   filepath.Join(dir, "failures.csv"),
	}
	cfg.Limits = shared.LimitsConfig{Hourly: 50, Daily: 200}
	cfg.Email.Validate = false
	cfg.Email.CC = ""
	cfg.Log = shared.LogConfig{Level: "error"}
	if edit != nil {
		edit(cfg)
	}

	configPath := filepath.Join(dir, "config.toml")
	if err := shared.SaveConfig(configPath, cfg); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	env := &testEnv{
		dir:     dir,
		config:  configPath,
		cfg:     cfg,
		output:  &bytes.Buffer{},
		mailer:  &tu.MockMailer{},
		mailbox: &tu.MockMailbox{},
		lookup:  &tu.MockLookup{},
	}
	env.runner = NewRunner(RunnerOpts{
		Logger:   shared.NewLogger(io.Discard),
		Output:   env.output,
		DB:       db,
		Mailer:   env.mailer,
		Mailbox:  env.mailbox,
		Spotify:  env.lookup,
		Resolver: fakeResolver{},
	})
	t.Cleanup(func() { env.runner.Close() })
	return env
}

// run executes the CLI with the env's config. Output accumulates across runs until reset.
func (e *testEnv) run(args ...string) error {
	app := newApp(e.runner)
	return app.Run(context.Background(), append([]string{"pitch", "--config", e.config}, args...))
}

func (e *testEnv) sendLog() *repositories.SendLogRepository {
	return repositories.NewSendLogRepository(e.runner.db)
}

func recipients(emails []services.Email) []string {
	var out []string
	for _, e := range emails {
		out = append(out, e.To)
	}
	return out
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			mailer := &tu.MockMailer{}
			mailbox := &tu.MockMailbox{}
			lookup := &tu.MockLookup{}

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Logger:  logger,
				Output:  output,
				Mailer:  mailer,
				Mailbox: mailbox,
				Spotify: lookup,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.mailer != mailer || runner.mailbox != mailbox || runner.spotify != lookup {
				t.Error("expected services to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})

		var names []string
		for i, cmd := range runner.register() {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names = append(names, cmd.Name)
		}

		want := []string{"setup", "gmail", "contacts", "validate", "drafts", "campaign", "bounces"}
		if diff := cmp.Diff(want, names); diff != "" {
			t.Errorf("registered commands mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("splitList", func(t *testing.T) {
		got := splitList(" manager@example.com, ,label@example.com ")
		want := []string{"manager@example.com", "label@example.com"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("splitList() mismatch (-want +got):\n%s", diff)
		}
		if splitList("") != nil {
			t.Error("expected nil for an empty list")
		}
	})
}

func TestBefore(t *testing.T) {
	t.Run("Loads Config File", func(t *testing.T) {
		env := newTestEnv(t, func(c *shared.Config) { c.Artist.Name = "The Lanterns" })
		if err := env.run("contacts", "emails"); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if env.runner.config.Artist.Name != "The Lanterns" {
			t.Errorf("expected config from file, got artist %q", env.runner.config.Artist.Name)
		}
		if env.runner.configPath != env.config {
			t.Errorf("configPath = %q, want %q", env.runner.configPath, env.config)
		}
	})

	t.Run("Invalid Config", func(t *testing.T) {
		env := newTestEnv(t, nil)
		tu.MustWriteFile(t, env.config, "[artist\nname = ")
		if err := env.run("contacts", "emails"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("Config", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.config = filepath.Join(env.dir, "new.toml")

		if err := env.run("setup", "config"); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, env.config)
		if !strings.Contains(tu.MustReadFile(t, env.config), "[limits]") {
			t.Error("expected the starter config to be written")
		}

		if err := env.run("setup", "config"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for existing config, got %v", err)
		}

		if err := env.run("setup", "config", "--force"); err != nil {
			t.Errorf("setup config --force failed: %v", err)
		}
		if _, err := shared.LoadConfig(env.config); err != nil {
			t.Errorf("rewritten config does not load: %v", err)
		}
	})

	t.Run("Database", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if err := env.run("setup", "database"); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "Send log ready") || !strings.Contains(env.output.String(), "0000 create_outreach") {
			t.Errorf("unexpected output: %s", env.output.String())
		}
	})

	t.Run("Rollback", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if err := env.run("setup", "rollback"); err != nil {
			t.Fatalf("setup rollback failed: %v", err)
		}
		applied, err := shared.AppliedMigrations(env.runner.db)
		if err != nil {
			t.Fatal(err)
		}
		if len(applied) != 0 {
			t.Errorf("expected no applied migrations, got %+v", applied)
		}
	})
}

func TestContactsCommands(t *testing.T) {
	t.Run("Parse JSON", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if err := env.run("contacts", "parse", "--json"); err != nil {
			t.Fatalf("parse failed: %v", err)
		}

		var records []contacts.ContactRecord
		if err := json.Unmarshal(env.output.Bytes(), &records); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, env.output.String())
		}
		if len(records) != 4 {
			t.Fatalf("expected 4 records, got %d", len(records))
		}
		if records[1].Email != "b@example.com" || records[1].PlaylistName != "Mix B" {
			t.Errorf("unexpected second record: %+v", records[1])
		}
	})

	t.Run("Parse Plain", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if err := env.run("contacts", "parse"); err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		out := env.output.String()
		for _, want := range []string{"Contacts (4)", "Mix A • Curator A • a@example.com • 100 followers", "3 unique addresses"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("Contacts Flag Overrides Config", func(t *testing.T) {
		env := newTestEnv(t, nil)
		other := filepath.Join(env.dir, "other.txt")
		tu.MustWriteFile(t, other, "Solo Mix\nSolo Curator\nhttps://open.spotify.com/playlist/s\nsolo@example.com\n")

		if err := env.run("contacts", "--contacts", other, "emails"); err != nil {
			t.Fatalf("emails failed: %v", err)
		}
		if env.output.String() != "solo@example.com\n" {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})

	t.Run("Export Markdown", func(t *testing.T) {
		env := newTestEnv(t, nil)
		path := filepath.Join(env.dir, "out", "contacts.md")
		if err := env.run("contacts", "export", "--output", path); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		content := tu.MustReadFile(t, path)
		if !strings.Contains(content, "# Playlist Contacts") || !strings.Contains(content, "## 2. Mix B") {
			t.Errorf("unexpected markdown:\n%s", content)
		}
	})

	t.Run("Export Invalid Format", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if err := env.run("contacts", "export", "--format", "xml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("Lookup", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if err := env.run("contacts", "lookup", "B@Example.com"); err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		out := env.output.String()
		if !strings.Contains(out, "Mix B") || !strings.Contains(out, "FOLK, SOUL") {
			t.Errorf("unexpected output:\n%s", out)
		}

		if err := env.run("contacts", "lookup", "nobody@example.com"); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
		if err := env.run("contacts", "lookup"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Emails", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if err := env.run("contacts", "emails"); err != nil {
			t.Fatalf("emails failed: %v", err)
		}
		want := "a@example.com\nb@example.com\nc@example.org\n"
		if env.output.String() != want {
			t.Errorf("emails = %q, want %q", env.output.String(), want)
		}
	})

	t.Run("Match", func(t *testing.T) {
		env := newTestEnv(t, nil)
		csvPath := filepath.Join(env.dir, "list.csv")
		tu.MustWriteFile(t, csvPath, "name,email\nAnn,A@example.com\nZed,zz@example.net\nAnn again,a@example.com\n")
		matchedPath := filepath.Join(env.dir, "matched.csv")

		if err := env.run("contacts", "match", "--csv", csvPath, "--output", matchedPath); err != nil {
			t.Fatalf("match failed: %v", err)
		}
		out := env.output.String()
		for _, want := range []string{"Addresses in CSV:  2", "Found in contacts: 1", "✗ zz@example.net"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if !strings.Contains(tu.MustReadFile(t, matchedPath), "a@example.com,Mix A,Curator A") {
			t.Error("expected matched record in CSV")
		}
	})

	t.Run("Enrich", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.lookup.Playlists = map[string]*services.SpotifyPlaylist{
			"y": tu.NewPlaylist("y", "Mix Y", "Yara", 4321),
			"z": tu.NewPlaylist("z", "Mix Z", "Curator Z", 950),
		}
		output := filepath.Join(env.dir, "enriched.json")

		if err := env.run("contacts", "enrich", "--output", output, "--rate", "1000"); err != nil {
			t.Fatalf("enrich failed: %v", err)
		}
		calls := slices.Clone(env.lookup.Calls)
		slices.Sort(calls)
		if diff := cmp.Diff([]string{"y", "z"}, calls); diff != "" {
			t.Errorf("lookups mismatch (-want +got):\n%s", diff)
		}

		var records []contacts.ContactRecord
		if err := json.Unmarshal([]byte(tu.MustReadFile(t, output)), &records); err != nil {
			t.Fatalf("enriched output is not JSON: %v", err)
		}
		if len(records) != 4 || records[2].Followers != "950" || records[3].Followers != "4,321" {
			t.Errorf("expected followers filled from spotify, got %+v", records)
		}
		if !strings.Contains(env.output.String(), "Updated:   2") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}
	})
}

func TestValidateCommands(t *testing.T) {
	t.Run("Email JSON", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if err := env.run("validate", "email", "--json", "a@example.com"); err != nil {
			t.Fatalf("validate email failed: %v", err)
		}

		var result validator.Result
		if err := json.Unmarshal(env.output.Bytes(), &result); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if !result.Valid || !result.HasMX {
			t.Errorf("expected a valid address with MX, got %+v", result)
		}
	})

	t.Run("Email Plain Invalid", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if err := env.run("validate", "email", "someone@nowhere.invalid"); err != nil {
			t.Fatalf("validate email failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "is not deliverable") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}
	})

	t.Run("Contacts", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if err := env.run("validate", "contacts"); err != nil {
			t.Fatalf("validate contacts failed: %v", err)
		}

		content := tu.MustReadFile(t, env.cfg.Files.ValidationCSV)
		if !strings.HasPrefix(content, "email,valid,syntax_valid") {
			t.Errorf("unexpected header:\n%s", content)
		}
		if !strings.Contains(content, "b@example.com,true,true,true,true,false,false,Mix B,Curator B") {
			t.Errorf("expected contact details beside results:\n%s", content)
		}
		if !strings.Contains(env.output.String(), "Valid:            3 (100.0%)") {
			t.Errorf("unexpected summary:\n%s", env.output.String())
		}
	})

	t.Run("CSV", func(t *testing.T) {
		env := newTestEnv(t, nil)
		csvPath := filepath.Join(env.dir, "list.csv")
		tu.MustWriteFile(t, csvPath, "email\nok@example.com\nbad@nowhere.invalid\n")
		output := filepath.Join(env.dir, "results.csv")

		if err := env.run("validate", "csv", "--csv", csvPath, "--output", output); err != nil {
			t.Fatalf("validate csv failed: %v", err)
		}
		content := tu.MustReadFile(t, output)
		if !strings.Contains(content, "ok@example.com,true") || !strings.Contains(content, "bad@nowhere.invalid,false") {
			t.Errorf("unexpected results:\n%s", content)
		}
	})
}

func TestCampaignCommands(t *testing.T) {
	t.Run("Drafts Then Resume", func(t *testing.T) {
		env := newTestEnv(t, nil)

		if err := env.run("drafts", "create"); err != nil {
			t.Fatalf("drafts create failed: %v", err)
		}
		want := []string{"a@example.com", "b@example.com", "c@example.org"}
		if diff := cmp.Diff(want, recipients(env.mailer.Drafts)); diff != "" {
			t.Errorf("drafts mismatch (-want +got):\n%s", diff)
		}
		if !strings.Contains(env.output.String(), "Drafted:  3") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}
		if d := env.mailer.Drafts[1]; d.Subject != "Music Submission for Mix B" || !strings.Contains(d.Plain, "Hi Curator B") {
			t.Errorf("unexpected draft: %+v", d)
		}

		env.output.Reset()
		if err := env.run("drafts", "create"); err != nil {
			t.Fatalf("second run failed: %v", err)
		}
		if len(env.mailer.Drafts) != 3 {
			t.Errorf("resume should skip drafted addresses, got %d drafts", len(env.mailer.Drafts))
		}
		if !strings.Contains(env.output.String(), "No contacts left to reach") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}

		if err := env.run("drafts", "create", "--resume=false", "--limit", "1"); err != nil {
			t.Fatalf("no-resume run failed: %v", err)
		}
		if len(env.mailer.Drafts) != 4 {
			t.Errorf("expected one more draft without resume, got %d", len(env.mailer.Drafts))
		}
	})

	t.Run("Send With Genre And Limit", func(t *testing.T) {
		env := newTestEnv(t, func(c *shared.Config) { c.Email.CC = "manager@example.com" })

		if err := env.run("campaign", "send", "--genre", "folk", "--limit", "1", "--name", "folk push"); err != nil {
			t.Fatalf("campaign send failed: %v", err)
		}
		if diff := cmp.Diff([]string{"b@example.com"}, recipients(env.mailer.Sent)); diff != "" {
			t.Errorf("sent mismatch (-want +got):\n%s", diff)
		}
		if cc := env.mailer.Sent[0].CC; len(cc) != 1 || cc[0] != "manager@example.com" {
			t.Errorf("expected CC from config, got %v", cc)
		}

		counts, err := env.sendLog().StatusCounts("")
		if err != nil {
			t.Fatal(err)
		}
		if counts[models.StatusSent] != 1 {
			t.Errorf("expected one sent record, got %v", counts)
		}
	})

	t.Run("Dry Run", func(t *testing.T) {
		env := newTestEnv(t, nil)

		if err := env.run("campaign", "send", "--dry-run"); err != nil {
			t.Fatalf("dry run failed: %v", err)
		}
		if len(env.mailer.Sent) != 0 || len(env.mailer.Drafts) != 0 {
			t.Error("dry run must not touch the mailer")
		}
		if !strings.Contains(env.output.String(), "Rendered: 3") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}

		if err := env.run("campaign", "send"); err != nil {
			t.Fatalf("send after dry run failed: %v", err)
		}
		if len(env.mailer.Sent) != 3 {
			t.Errorf("dry runs should not count as processed, sent %d", len(env.mailer.Sent))
		}
	})

	t.Run("Failures File Excludes Addresses", func(t *testing.T) {
		env := newTestEnv(t, nil)
		tu.MustWriteFile(t, env.cfg.Files.FailuresCSV, "email,reason\nA@example.com,Address not found\n")

		if err := env.run("campaign", "send"); err != nil {
			t.Fatalf("campaign send failed: %v", err)
		}
		if diff := cmp.Diff([]string{"b@example.com", "c@example.org"}, recipients(env.mailer.Sent)); diff != "" {
			t.Errorf("sent mismatch (-want +got):\n%s", diff)
		}
		if !strings.Contains(env.output.String(), "already processed") {
			t.Errorf("expected skip reason in output:\n%s", env.output.String())
		}
	})

	t.Run("Validation Skips Bad Addresses", func(t *testing.T) {
		env := newTestEnv(t, func(c *shared.Config) { c.Email.Validate = true })
		tu.MustWriteFile(t, env.cfg.Files.Contacts,
			"Mix Q\nCurator Q\nhttps://open.spotify.com/playlist/q\nq@nowhere.invalid\n"+strings.Join(contactSheet[2:8], "\n"))

		if err := env.run("drafts", "create"); err != nil {
			t.Fatalf("drafts create failed: %v", err)
		}
		if diff := cmp.Diff([]string{"a@example.com"}, recipients(env.mailer.Drafts)); diff != "" {
			t.Errorf("drafts mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Daily Limit", func(t *testing.T) {
		env := newTestEnv(t, func(c *shared.Config) { c.Limits.Daily = 2 })

		if err := env.run("campaign", "send"); err != nil {
			t.Fatalf("campaign send failed: %v", err)
		}
		if len(env.mailer.Sent) != 2 {
			t.Errorf("expected the daily cap to stop after 2, sent %d", len(env.mailer.Sent))
		}
		if !strings.Contains(env.output.String(), "Daily limit of 2 reached") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}
	})

	t.Run("Missing Template", func(t *testing.T) {
		env := newTestEnv(t, nil)
		err := env.run("drafts", "create", "--template", filepath.Join(env.dir, "missing.md"))
		if !errors.Is(err, shared.ErrFileNotFound) {
			t.Errorf("expected ErrFileNotFound, got %v", err)
		}
	})

	t.Run("Status", func(t *testing.T) {
		env := newTestEnv(t, func(c *shared.Config) { c.Limits.Daily = 10 })
		if err := env.run("campaign", "send", "--limit", "2", "--name", "first"); err != nil {
			t.Fatalf("campaign send failed: %v", err)
		}

		env.output.Reset()
		if err := env.run("campaign", "status", "--json"); err != nil {
			t.Fatalf("campaign status failed: %v", err)
		}

		var status campaignStatus
		if err := json.Unmarshal(env.output.Bytes(), &status); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, env.output.String())
		}
		if status.Latest == nil || status.Latest.Name != "first" || status.Latest.Sent != 2 {
			t.Errorf("unexpected latest campaign: %+v", status.Latest)
		}
		if status.Totals["sent"] != 2 || status.DayRemaining != 8 {
			t.Errorf("unexpected totals: %+v", status)
		}
	})

	t.Run("Status Without Campaigns", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if err := env.run("campaign", "status"); err != nil {
			t.Fatalf("campaign status failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "No campaigns yet.") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}
	})
}

func TestBouncesCommands(t *testing.T) {
	t.Run("Check Marks And Writes Report", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.mailbox.Refs = []services.MessageRef{{ID: "m1"}, {ID: "m2"}}
		env.mailbox.Raw = map[string]string{
			"m1": tu.BounceMessage("Delivery Status Notification (Failure)", "Mon, 06 Oct 2025 10:00:00 +0000",
				"Your message wasn't delivered to b@example.com because the address couldn't be found."),
			"m2": tu.BounceMessage("Undeliverable: Music Submission", "Tue, 07 Oct 2025 08:30:00 +0000",
				"Delivery to b@example.com failed."),
		}

		if err := env.run("bounces", "check", "--days", "3"); err != nil {
			t.Fatalf("bounces check failed: %v", err)
		}
		if !strings.Contains(env.mailbox.Query, "newer_than:3d") {
			t.Errorf("unexpected query %q", env.mailbox.Query)
		}
		if !strings.Contains(env.output.String(), "Bounced addresses: 1") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}
		if !strings.Contains(tu.MustReadFile(t, env.cfg.Files.FailuresCSV), "b@example.com") {
			t.Error("expected bounce report to be written")
		}

		processed, err := env.sendLog().Processed()
		if err != nil {
			t.Fatal(err)
		}
		if processed["b@example.com"] != models.StatusBounced {
			t.Errorf("expected b@example.com marked bounced, got %v", processed)
		}
	})

	t.Run("Check Without Bounces", func(t *testing.T) {
		env := newTestEnv(t, nil)
		if err := env.run("bounces", "check", "--mark=false"); err != nil {
			t.Fatalf("bounces check failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "No bounces found") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}
	})

	t.Run("Import", func(t *testing.T) {
		env := newTestEnv(t, nil)
		path := filepath.Join(env.dir, "legacy.csv")
		tu.MustWriteFile(t, path, "email,error_reason,source\na@example.com,Mailbox full,gmail\nc@example.org,,gmail\n")

		if err := env.run("bounces", "import", "--csv", path); err != nil {
			t.Fatalf("bounces import failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "Imported 2 bounced addresses (2 new)") {
			t.Errorf("unexpected output:\n%s", env.output.String())
		}

		env.output.Reset()
		if err := env.run("bounces", "import", "--csv", path); err != nil {
			t.Fatalf("second import failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "(0 new)") {
			t.Errorf("import should be idempotent:\n%s", env.output.String())
		}

		if err := env.run("drafts", "create"); err != nil {
			t.Fatalf("drafts create failed: %v", err)
		}
		if diff := cmp.Diff([]string{"b@example.com"}, recipients(env.mailer.Drafts)); diff != "" {
			t.Errorf("bounced addresses should be skipped (-want +got):\n%s", diff)
		}
	})

	t.Run("Import Missing File", func(t *testing.T) {
		env := newTestEnv(t, nil)
		err := env.run("bounces", "import", "--csv", filepath.Join(env.dir, "missing.csv"))
		if !errors.Is(err, shared.ErrFileNotFound) {
			t.Errorf("expected ErrFileNotFound, got %v", err)
		}
	})
}
