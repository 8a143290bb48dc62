package sftp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/flowport/flowport/pkg/migrate"
)

func TestCopyVerified(t *testing.T) {
	var dst bytes.Buffer
	data := "<definitions/>"

	err := copyVerified(&dst, strings.NewReader(data), "exports/hr.bpmn", int64(len(data)))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if dst.String() != data {
		t.Errorf("Expected %q copied, got %q", data, dst.String())
	}
}

func TestCopyVerified_ShortDownload(t *testing.T) {
	var dst bytes.Buffer

	err := copyVerified(&dst, strings.NewReader("<def"), "exports/hr.bpmn", 100)
	if err == nil {
		t.Fatal("Expected error for truncated download")
	}
	if !migrate.IsRetryable(err) {
		t.Errorf("Expected retryable error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "short download") {
		t.Errorf("Expected short download in error, got: %v", err)
	}
}
