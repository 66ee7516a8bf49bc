package engine

import (
	"strings"
	"sync"
	"testing"

	"github.com/snoble/slvsx/pkg/sketch"
)

func TestEvaluateEmptyString(t *testing.T) {
	eng := NewEngine()

	doc, evalErrs, err := eng.Evaluate("")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if doc == nil {
		t.Fatal("expected non-nil document")
	}
	if doc.Schema != sketch.SchemaVersion {
		t.Errorf("expected schema %q, got %q", sketch.SchemaVersion, doc.Schema)
	}
	if doc.Units != sketch.DefaultUnits {
		t.Errorf("expected default units, got %q", doc.Units)
	}
	if len(doc.Entities) != 0 {
		t.Errorf("expected empty document, got %d entities", len(doc.Entities))
	}
}

func TestEvaluateWhitespaceOnly(t *testing.T) {
	eng := NewEngine()

	doc, evalErrs, err := eng.Evaluate("   \n\t  \n  ")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if doc == nil || len(doc.Entities) != 0 {
		t.Errorf("expected empty document, got %+v", doc)
	}
}

func TestEvaluatePlainExpression(t *testing.T) {
	eng := NewEngine()

	// (+ 1 2) is valid Lisp that declares nothing; the document stays empty.
	doc, evalErrs, err := eng.Evaluate("(+ 1 2)")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if len(doc.Entities) != 0 || len(doc.Constraints) != 0 {
		t.Errorf("expected empty document, got %d entities, %d constraints",
			len(doc.Entities), len(doc.Constraints))
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	eng := NewEngine()

	doc, evalErrs, err := eng.Evaluate("(point \"a\" 0 0")
	if err != nil {
		t.Fatalf("syntax errors should be eval errors, not fatal: %v", err)
	}
	if doc != nil {
		t.Error("expected nil document on syntax error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error")
	}
}

func TestEvaluateUndefinedFunction(t *testing.T) {
	eng := NewEngine()

	doc, evalErrs, err := eng.Evaluate(`(definitely-not-a-builtin "x")`)
	if err != nil {
		t.Fatalf("runtime errors should be eval errors, not fatal: %v", err)
	}
	if doc != nil {
		t.Error("expected nil document on runtime error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error")
	}
}

func TestEvaluateBuiltinArgError(t *testing.T) {
	eng := NewEngine()

	// line requires two point references; the builtin error surfaces as an
	// eval error with the builtin name in the message.
	_, evalErrs, err := eng.Evaluate(`(line "ab")`)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected an eval error")
	}
	if !strings.Contains(evalErrs[0].Message, "line") {
		t.Errorf("expected error to mention the builtin, got %q", evalErrs[0].Message)
	}
}

func TestEvalErrorFormat(t *testing.T) {
	e := EvalError{Line: 3, Message: "boom"}
	if e.Error() != "line 3: boom" {
		t.Errorf("unexpected format: %q", e.Error())
	}
	e = EvalError{Message: "boom"}
	if e.Error() != "boom" {
		t.Errorf("unexpected format without line: %q", e.Error())
	}
}

func TestConcurrentEvaluations(t *testing.T) {
	eng := NewEngine()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, evalErrs, err := eng.Evaluate(`(point "a" 1 2 3)`)
			if err != nil {
				// A concurrent call may be superseded by a newer one.
				if !strings.Contains(err.Error(), "superseded") {
					t.Errorf("unexpected fatal error: %v", err)
				}
				return
			}
			if len(evalErrs) > 0 {
				t.Errorf("unexpected eval errors: %v", evalErrs)
				return
			}
			if len(doc.Entities) != 1 {
				t.Errorf("expected 1 entity, got %d", len(doc.Entities))
			}
		}()
	}
	wg.Wait()
}

func TestFreshEnvironmentPerEvaluation(t *testing.T) {
	eng := NewEngine()

	doc1, _, err := eng.Evaluate(`(point "a" 0 0 0)`)
	if err != nil {
		t.Fatalf("first evaluation: %v", err)
	}
	doc2, _, err := eng.Evaluate(`(point "b" 1 1 1)`)
	if err != nil {
		t.Fatalf("second evaluation: %v", err)
	}

	// Entities from the first run must not leak into the second.
	if len(doc1.Entities) != 1 || len(doc2.Entities) != 1 {
		t.Fatalf("expected 1 entity each, got %d and %d", len(doc1.Entities), len(doc2.Entities))
	}
	if doc2.Entities[0].ID != "b" {
		t.Errorf("second document contains stale entity %q", doc2.Entities[0].ID)
	}
}
