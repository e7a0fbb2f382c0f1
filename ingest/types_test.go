package ingest

import "testing"

func TestArchiveResultSuccess(t *testing.T) {
	tests := []struct {
		name string
		r    ArchiveResult
		want bool
	}{
		{name: "no error", r: ArchiveResult{ProducedURLs: []string{"u1"}}, want: true},
		{name: "with error", r: ArchiveResult{Err: IntegrityError{FileName: "a.zip"}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Success(); got != tt.want {
				t.Fatalf("Success() = %v, want %v", got, tt.want)
			}
		})
	}
}
