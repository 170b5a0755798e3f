package msg91_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/niksrid/sendsms-go/pkg/msg91"
)

func messagesOf(envelopes []msg91.Envelope) []string {
	out := make([]string, 0, len(envelopes))
	for _, env := range envelopes {
		out = append(out, env.Message)
	}
	return out
}

func TestBuildEnvelopesListKeepsOrderAndDropsEmpty(t *testing.T) {
	envelopes, err := msg91.BuildEnvelopes(
		msg91.Scalar("919999999999"),
		msg91.List("first  ", "   ", "second\n", "", " third"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"first", "second", " third"}
	if got := messagesOf(envelopes); !reflect.DeepEqual(got, want) {
		t.Fatalf("messages = %q, want %q", got, want)
	}
}

func TestBuildEnvelopesDelimitedDropsTrailingSegment(t *testing.T) {
	envelopes, err := msg91.BuildEnvelopes(msg91.Scalar("919999999999"), msg91.Delimited("hi, bye, "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(envelopes) != 2 {
		t.Fatalf("expected 2 envelopes, got %d (%q)", len(envelopes), messagesOf(envelopes))
	}
	if envelopes[0].Message != "hi" || envelopes[1].Message != " bye" {
		t.Fatalf("unexpected messages %q", messagesOf(envelopes))
	}
}

func TestBuildEnvelopesScalarIsNeverSplit(t *testing.T) {
	envelopes, err := msg91.BuildEnvelopes(msg91.Scalar("919999999999"), msg91.Scalar("hi, bye  "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(envelopes) != 1 || envelopes[0].Message != "hi, bye  " {
		t.Fatalf("expected the whole value in one envelope, got %q", messagesOf(envelopes))
	}
}

func TestBuildEnvelopesDelimitedWithoutCommaIsWholeValue(t *testing.T) {
	envelopes, err := msg91.BuildEnvelopes(msg91.Scalar("919999999999"), msg91.Delimited("hello  "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(envelopes) != 1 || envelopes[0].Message != "hello  " {
		t.Fatalf("expected one untrimmed envelope, got %q", messagesOf(envelopes))
	}
}

func TestBuildEnvelopesEmptyMessages(t *testing.T) {
	cases := map[string]msg91.Input{
		"absent":          {},
		"empty scalar":    msg91.Scalar(""),
		"empty delimited": msg91.Delimited(""),
		"empty list":      msg91.List(),
		"blank list":      msg91.List(" ", "\t"),
		"only commas":     msg91.Delimited(", ,"),
	}

	for name, messages := range cases {
		messages := messages
		t.Run(name, func(t *testing.T) {
			envelopes, err := msg91.BuildEnvelopes(msg91.Scalar("919999999999"), messages)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(envelopes) != 0 {
				t.Fatalf("expected no envelopes, got %q", messagesOf(envelopes))
			}
		})
	}
}

func TestBuildEnvelopesInvalidRecipients(t *testing.T) {
	cases := map[string]msg91.Input{
		"absent":          {},
		"empty scalar":    msg91.Scalar(""),
		"empty delimited": msg91.Delimited(""),
		"empty list":      msg91.List(),
	}
	messages := []msg91.Input{{}, msg91.Scalar("hello"), msg91.List("a", "b")}

	for name, recipients := range cases {
		recipients := recipients
		t.Run(name, func(t *testing.T) {
			for _, m := range messages {
				envelopes, err := msg91.BuildEnvelopes(recipients, m)
				if !errors.Is(err, msg91.ErrInvalidRecipients) {
					t.Fatalf("expected ErrInvalidRecipients for messages %v, got %v", m.Kind(), err)
				}
				if !errors.Is(err, msg91.ErrCallerInput) {
					t.Fatalf("expected caller input error, got %v", err)
				}
				if envelopes != nil {
					t.Fatalf("expected no envelopes on error, got %d", len(envelopes))
				}
			}
		})
	}
}

func TestBuildEnvelopesRecipientShapes(t *testing.T) {
	cases := []struct {
		name       string
		recipients msg91.Input
		wantJSON   string
		wantList   []string
	}{
		{
			name:       "scalar",
			recipients: msg91.Scalar("919999999999"),
			wantJSON:   `[{"message":"hi","to":["919999999999"]}]`,
			wantList:   []string{"919999999999"},
		},
		{
			name:       "list kept verbatim",
			recipients: msg91.List("919999999999", " 918888888888 "),
			wantJSON:   `[{"message":"hi","to":[["919999999999"," 918888888888 "]]}]`,
			wantList:   []string{"919999999999", " 918888888888 "},
		},
		{
			name:       "delimited trimmed",
			recipients: msg91.Delimited("919999999999 , 918888888888"),
			wantJSON:   `[{"message":"hi","to":[["919999999999","918888888888"]]}]`,
			wantList:   []string{"919999999999", "918888888888"},
		},
		{
			name:       "delimited keeps empty entries",
			recipients: msg91.Delimited("919999999999, 918888888888,"),
			wantJSON:   `[{"message":"hi","to":[["919999999999","918888888888",""]]}]`,
			wantList:   []string{"919999999999", "918888888888", ""},
		},
		{
			name:       "delimited without comma",
			recipients: msg91.Delimited("919999999999"),
			wantJSON:   `[{"message":"hi","to":["919999999999"]}]`,
			wantList:   []string{"919999999999"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			envelopes, err := msg91.BuildEnvelopes(tc.recipients, msg91.Scalar("hi"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			raw, err := json.Marshal(envelopes)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(raw) != tc.wantJSON {
				t.Fatalf("json = %s, want %s", raw, tc.wantJSON)
			}
			if got := envelopes[0].To[0].Numbers(); !reflect.DeepEqual(got, tc.wantList) {
				t.Fatalf("numbers = %q, want %q", got, tc.wantList)
			}
		})
	}
}

func TestBuildEnvelopesShareRecipientSet(t *testing.T) {
	envelopes, err := msg91.BuildEnvelopes(msg91.List("919999999999", "918888888888"), msg91.List("a", "b", "c"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(envelopes) != 3 {
		t.Fatalf("expected 3 envelopes, got %d", len(envelopes))
	}
	first := envelopes[0].To
	for i, env := range envelopes {
		if len(env.To) != 1 {
			t.Fatalf("envelope %d: expected a single recipient set, got %d", i, len(env.To))
		}
		if !reflect.DeepEqual(env.To, first) {
			t.Fatalf("envelope %d: recipient set differs: %v vs %v", i, env.To[0].Numbers(), first[0].Numbers())
		}
	}
}

func TestListCopiesInput(t *testing.T) {
	values := []string{"919999999999"}
	in := msg91.List(values...)
	values[0] = "changed"

	envelopes, err := msg91.BuildEnvelopes(in, msg91.Scalar("hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := envelopes[0].To[0].Numbers()[0]; got != "919999999999" {
		t.Fatalf("expected original number, got %q", got)
	}
}
