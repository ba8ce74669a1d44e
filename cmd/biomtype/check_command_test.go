package main

import (
	"testing"

	"biomtype/internal/testsupport"
)

func TestCheckCommandPasses(t *testing.T) {
	stub := newQiitaStub(t)
	env := setupCLITestEnv(t, testsupport.WithQiitaURL(stub.server.URL))

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "[OK] 7 checks passed")
}

func TestCheckCommandReportsFailures(t *testing.T) {
	stub := newQiitaStub(t)
	env := setupCLITestEnv(t, testsupport.WithQiitaURL(stub.server.URL))
	env.cfg.Qiita.ClientSecret = "wrong"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err == nil {
		t.Fatal("expected check failure with bad credentials")
	}
	requireContains(t, out, "auth failed (400)")
}
