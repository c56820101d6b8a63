/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/dnaeon/go-vcr.v3/cassette"
	"gopkg.in/dnaeon/go-vcr.v3/recorder"

	"github.com/toothbrush/confluence-migrate/archive"
	"github.com/toothbrush/confluence-migrate/confluence"
	"github.com/toothbrush/confluence-migrate/credentials"
	"github.com/toothbrush/confluence-migrate/kvstore"
	"github.com/toothbrush/confluence-migrate/migrate"
)

// session is everything a command needs to talk to the service; Close releases it.
type session struct {
	svc   *migrate.Service
	store *kvstore.SQLite
	vcr   *recorder.Recorder
}

func openSession() (*session, error) {
	path, err := homedir.Expand(StateDB)
	if err != nil {
		return nil, fmt.Errorf("cmd: couldn't expand homedir: %w", err)
	}
	store, err := kvstore.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("cmd: couldn't open state database: %w", err)
	}
	logger.Debugf("using state database %s", path)

	s := &session{svc: migrate.NewService(store), store: store}

	if WithVCR {
		if err := s.startVCR(); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *session) startVCR() error {
	opts := &recorder.Options{
		CassetteName:       "fixtures/confluence-migrate",
		Mode:               recorder.ModeReplayWithNewEpisodes,
		SkipRequestLatency: true,
		RealTransport:      http.DefaultTransport,
	}
	r, err := recorder.NewWithOptions(opts)
	if err != nil {
		return fmt.Errorf("cmd: couldn't set up go-vcr recording: %w", err)
	}

	// Tokens must never end up in a cassette.
	r.AddHook(func(i *cassette.Interaction) error {
		delete(i.Request.Headers, "Authorization")
		return nil
	}, recorder.AfterCaptureHook)
	r.SetReplayableInteractions(true)

	client := r.GetDefaultClient()
	s.svc.Dial = func(creds credentials.Credentials) (*confluence.API, error) {
		api, err := credentials.Dial(creds)
		if err != nil {
			return nil, err
		}
		api.Client = client
		return api, nil
	}
	s.vcr = r
	return nil
}

// withArchive makes the service also write migrated pages to --archive-dir, when set.
func (s *session) withArchive(ctx context.Context) error {
	if ArchiveDir == "" {
		return nil
	}
	dir, err := homedir.Expand(ArchiveDir)
	if err != nil {
		return fmt.Errorf("cmd: couldn't expand homedir: %w", err)
	}
	domain, err := s.sourceDomain(ctx)
	if err != nil {
		return err
	}
	a, err := archive.New(dir, domain)
	if err != nil {
		return err
	}
	s.svc.Archive = a
	return nil
}

// sourceDomain is the domain of the saved source credentials.
func (s *session) sourceDomain(ctx context.Context) (string, error) {
	src, err := s.svc.GetCredentials(ctx, credentials.Source)
	if err != nil {
		return "", err
	}
	if src == nil {
		return "", fmt.Errorf("cmd: no source credentials saved, see `confluence-migrate creds save source`")
	}
	return src.Domain, nil
}

func (s *session) Close() {
	if s.vcr != nil {
		if err := s.vcr.Stop(); err != nil {
			logger.Warningf("couldn't save VCR cassette: %v", err)
		}
	}
	if err := s.store.Close(); err != nil {
		logger.Warningf("couldn't close state database: %v", err)
	}
}

// resolveToken runs a token command and keeps the first line of its output.  Without a command,
// the environment variable is used.
func resolveToken(tokenCmd []string, envVar string) (string, error) {
	if len(tokenCmd) == 0 {
		if token := os.Getenv(envVar); token != "" {
			return token, nil
		}
		return "", fmt.Errorf("cmd: no token command configured and %s is empty", envVar)
	}

	out, err := exec.Command(tokenCmd[0], tokenCmd[1:]...).Output()
	if err != nil {
		return "", fmt.Errorf("cmd: couldn't execute token command '%v': %w", tokenCmd, err)
	}
	token := strings.TrimSpace(strings.Split(string(out), "\n")[0])
	if token == "" {
		return "", fmt.Errorf("cmd: token command '%v' printed nothing", tokenCmd)
	}
	return token, nil
}
