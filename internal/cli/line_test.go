package cli

import (
	"strings"
	"testing"
)

func resetLineFlags() {
	lineModel, lineTranscript, lineSession, lineDir, lineKey = "", "", "", "", ""
	lineWidth = 0
}

func TestSessionFromPayload(t *testing.T) {
	t.Cleanup(resetLineFlags)
	resetLineFlags()

	payload := `{
		"session_id": "abc123",
		"model": {"id": "claude-sonnet-4", "display_name": "Sonnet"},
		"transcript_path": "/tmp/t.jsonl",
		"cwd": "/home/me/proj",
		"workspace": {"current_dir": "/home/me/proj/sub"},
		"unknown_field": 42
	}`

	sess := sessionFromInputs(strings.NewReader(payload))
	if sess.ID != "abc123" {
		t.Errorf("ID = %q", sess.ID)
	}
	if sess.Model != "claude-sonnet-4" {
		t.Errorf("Model = %q, want id over display_name", sess.Model)
	}
	if sess.TranscriptPath != "/tmp/t.jsonl" {
		t.Errorf("TranscriptPath = %q", sess.TranscriptPath)
	}
	if sess.WorkDir != "/home/me/proj/sub" {
		t.Errorf("WorkDir = %q, want workspace.current_dir over cwd", sess.WorkDir)
	}
}

func TestSessionFromPayloadStringModel(t *testing.T) {
	t.Cleanup(resetLineFlags)
	resetLineFlags()

	sess := sessionFromInputs(strings.NewReader(`{"model": "gpt-4o", "cwd": "/p"}`))
	if sess.Model != "gpt-4o" {
		t.Errorf("Model = %q", sess.Model)
	}
	if sess.WorkDir != "/p" {
		t.Errorf("WorkDir = %q", sess.WorkDir)
	}
}

func TestSessionFlagsWinOverPayload(t *testing.T) {
	t.Cleanup(resetLineFlags)
	resetLineFlags()
	lineModel = "claude-opus-4"
	lineKey = "sprint-12"

	sess := sessionFromInputs(strings.NewReader(`{"model": "gpt-4o"}`))
	if sess.Model != "claude-opus-4" {
		t.Errorf("Model = %q, want flag override", sess.Model)
	}
	if sess.MilestoneKey != "sprint-12" {
		t.Errorf("MilestoneKey = %q", sess.MilestoneKey)
	}
}

func TestSessionMalformedPayloadIgnored(t *testing.T) {
	t.Cleanup(resetLineFlags)
	resetLineFlags()

	sess := sessionFromInputs(strings.NewReader(`this is not json at all`))
	if sess.ID != "" || sess.Model != "" {
		t.Errorf("malformed payload produced %+v, want zero session", sess)
	}
}
