package vosk

import (
	"testing"

	"github.com/harunnryd/voskstream/pkg/errorsx"
)

func TestAggregateConfidence(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		conf float64
		out  string
	}{
		{
			name: "missing conf is skipped",
			raw:  `{"result":[{"word":"hi","conf":0.9},{"word":"there"}]}`,
			conf: 0.9,
			out:  `{"result":[{"word":"hi","conf":0.9},{"word":"there"}],"conf":0.9}`,
		},
		{
			name: "no result field",
			raw:  `{"text":"hi there"}`,
			conf: 0,
			out:  `{"text":"hi there","conf":0.0}`,
		},
		{
			name: "result is not a list",
			raw:  `{"result":{"conf":0.5}}`,
			conf: 0,
			out:  `{"result":{"conf":0.5},"conf":0.0}`,
		},
		{
			name: "empty result",
			raw:  `{"result":[],"text":""}`,
			conf: 0,
			out:  `{"result":[],"text":"","conf":0.0}`,
		},
		{
			name: "mean rounded to three places",
			raw:  `{"result":[{"conf":0.1234},{"conf":0.5678}]}`,
			conf: 0.346,
			out:  `{"result":[{"conf":0.1234},{"conf":0.5678}],"conf":0.346}`,
		},
		{
			name: "value stored below the tie rounds down",
			raw:  `{"result":[{"conf":0.2345}]}`,
			conf: 0.234,
			out:  `{"result":[{"conf":0.2345}],"conf":0.234}`,
		},
		{
			name: "exact tie rounds to even",
			raw:  `{"result":[{"conf":0.8125}]}`,
			conf: 0.812,
			out:  `{"result":[{"conf":0.8125}],"conf":0.812}`,
		},
		{
			name: "exact tie at one sixteenth rounds to even",
			raw:  `{"result":[{"conf":0.0625}]}`,
			conf: 0.062,
			out:  `{"result":[{"conf":0.0625}],"conf":0.062}`,
		},
		{
			name: "mean landing on a tie rounds to even",
			raw:  `{"result":[{"conf":0.8},{"conf":0.825}]}`,
			conf: 0.812,
			out:  `{"result":[{"conf":0.8},{"conf":0.825}],"conf":0.812}`,
		},
		{
			name: "whole number mean keeps a decimal point",
			raw:  `{"result":[{"conf":1},{"conf":1.0}]}`,
			conf: 1,
			out:  `{"result":[{"conf":1},{"conf":1.0}],"conf":1.0}`,
		},
		{
			name: "null and non-numeric conf are skipped",
			raw:  `{"result":[{"conf":null},{"conf":"high"},{"conf":0.4},"word",null]}`,
			conf: 0.4,
			out:  `{"result":[{"conf":null},{"conf":"high"},{"conf":0.4},"word",null],"conf":0.4}`,
		},
		{
			name: "existing conf is overwritten in place",
			raw:  `{"conf":5,"result":[{"conf":0.25}],"text":"a"}`,
			conf: 0.25,
			out:  `{"conf":0.25,"result":[{"conf":0.25}],"text":"a"}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Aggregate([]byte(tc.raw))
			if err != nil {
				t.Fatalf("aggregate: %v", err)
			}
			if res.Conf != tc.conf {
				t.Fatalf("conf = %v, want %v", res.Conf, tc.conf)
			}
			if got := res.String(); got != tc.out {
				t.Fatalf("output = %s, want %s", got, tc.out)
			}
		})
	}
}

func TestAggregatePreservesValuesVerbatim(t *testing.T) {
	raw := "{\n  \"text\" : \"<b>café & co</b>\",\n  \"result\" : [ {\"conf\": 1.50, \"start\": 0.000} ]\n}"
	res, err := Aggregate([]byte(raw))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	want := `{"text":"<b>café & co</b>","result":[{"conf":1.50,"start":0.000}],"conf":1.5}`
	if got := res.String(); got != want {
		t.Fatalf("output = %s, want %s", got, want)
	}
	if res.Text() != "<b>café & co</b>" {
		t.Fatalf("unexpected text %q", res.Text())
	}
}

func TestAggregateMalformed(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"text":`, `[{"conf":0.5}]`, `"text"`, `null`} {
		_, err := Aggregate([]byte(raw))
		if !errorsx.HasReason(err, errorsx.ReasonMalformedFinal) {
			t.Fatalf("Aggregate(%q): expected malformed final error, got %v", raw, err)
		}
	}
}

func TestAggregateWords(t *testing.T) {
	res, err := Aggregate([]byte(`{"result":[{"word":"hi","conf":0.9,"start":0.1,"end":0.4},{"word":"there","start":0.4,"end":0.9}],"text":"hi there"}`))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	words, err := res.Words()
	if err != nil {
		t.Fatalf("words: %v", err)
	}
	if len(words) != 2 || words[0].Word != "hi" || words[1].End != 0.9 {
		t.Fatalf("unexpected words %+v", words)
	}
	if words[0].Conf == nil || *words[0].Conf != 0.9 || words[1].Conf != nil {
		t.Fatalf("conf presence not preserved: %+v", words)
	}
	if keys := res.Keys(); len(keys) != 3 || keys[2] != "conf" {
		t.Fatalf("unexpected keys %v", keys)
	}
}
