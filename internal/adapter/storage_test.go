package adapter

import "testing"

func TestNativeExportType(t *testing.T) {
	cases := []struct {
		mime       string
		wantExport string
		wantNative bool
	}{
		{"application/vnd.google-apps.document", "text/plain", true},
		{"application/vnd.google-apps.spreadsheet", "text/csv", true},
		{"application/vnd.google-apps.presentation", "text/plain", true},
		{"application/pdf", "", false},
		{"text/plain", "", false},
	}
	for _, tc := range cases {
		got, native := NativeExportType(tc.mime)
		if got != tc.wantExport || native != tc.wantNative {
			t.Errorf("NativeExportType(%s) = (%s, %v), want (%s, %v)", tc.mime, got, native, tc.wantExport, tc.wantNative)
		}
	}
}
