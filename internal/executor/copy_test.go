package executor

import "testing"

func TestClassifyCopyParsesFromStdinWithColumns(t *testing.T) {
	target, ok := ClassifyCopy(`COPY widgets (id, name) FROM STDIN`)
	if !ok {
		t.Fatal("expected COPY FROM STDIN to classify")
	}
	if target.Table != "widgets" || target.ToStdout {
		t.Fatalf("unexpected target: %+v", target)
	}
	if len(target.Columns) != 2 || target.Columns[0] != "id" || target.Columns[1] != "name" {
		t.Fatalf("expected columns [id name], got %v", target.Columns)
	}
}

func TestClassifyCopyParsesToStdoutWithoutColumns(t *testing.T) {
	target, ok := ClassifyCopy(`COPY "Widgets" TO STDOUT`)
	if !ok {
		t.Fatal("expected COPY TO STDOUT to classify")
	}
	if target.Table != "Widgets" || !target.ToStdout {
		t.Fatalf("unexpected target: %+v", target)
	}
	if len(target.Columns) != 0 {
		t.Fatalf("expected no explicit columns, got %v", target.Columns)
	}
}

func TestClassifyCopyRejectsNonStdinCopy(t *testing.T) {
	if _, ok := ClassifyCopy(`COPY widgets TO '/tmp/out.csv'`); ok {
		t.Fatal("expected a file-target COPY not to classify as a streamable statement")
	}
}

func TestClassifyCopyRejectsOrdinaryStatements(t *testing.T) {
	if _, ok := ClassifyCopy(`SELECT * FROM widgets`); ok {
		t.Fatal("expected a plain SELECT not to classify as COPY")
	}
}

func TestDecodeCopyTextRowHandlesNullAndEscapes(t *testing.T) {
	got := decodeCopyTextRow("1\t\\N\tgear\\twrench")
	want := []any{"1", nil, "gear\twrench"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got[0] != want[0] || got[1] != nil || got[2] != want[2] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestEncodeCopyTextRowRoundTripsThroughDecode(t *testing.T) {
	line := encodeCopyTextRow([]any{"a\tb", nil, "plain"})
	got := decodeCopyTextRow(line)
	if got[0] != "a\tb" || got[1] != nil || got[2] != "plain" {
		t.Fatalf("round trip mismatch: %v", got)
	}
}

func TestQuoteIdentEscapesEmbeddedQuotes(t *testing.T) {
	if got := quoteIdent(`wid"gets`); got != `"wid""gets"` {
		t.Fatalf("expected escaped identifier, got %q", got)
	}
}
