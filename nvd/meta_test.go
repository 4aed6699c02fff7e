package nvd_test

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/travispaul/nvd-search/nvd"
)

func TestParseMeta(t *testing.T) {
	tests := map[string]struct {
		in   string
		want nvd.Meta
	}{
		"checksum and size": {
			in: "sha256:ABCD\r\nsize:42\r\n",
			want: nvd.Meta{
				"sha256": "ABCD",
				"size":   "42",
			},
		},
		"real metadata document": {
			in: "lastModifiedDate:2023-11-28T03:00:01-05:00\r\n" +
				"size:12038943\r\nzipSize:743859\r\ngzSize:743723\r\n" +
				"sha256:08C344DBC6E6E09B7D1A42D5B61D82B01FDC99939E3D9E6F64DD742F6C2B322F\r\n",
			want: nvd.Meta{
				"lastModifiedDate": "2023-11-28T03:00:01-05:00",
				"size":             "12038943",
				"zipSize":          "743859",
				"gzSize":           "743723",
				"sha256":           "08C344DBC6E6E09B7D1A42D5B61D82B01FDC99939E3D9E6F64DD742F6C2B322F",
			},
		},
		"colons in the value are kept": {
			in:   "lastModifiedDate:2015-09-09T03:07:25-04:00\r\n",
			want: nvd.Meta{"lastModifiedDate": "2015-09-09T03:07:25-04:00"},
		},
		"line without a colon": {
			in:   "sha256:ABCD\r\nnocolonhere\r\n",
			want: nvd.Meta{"sha256": "ABCD", "nocolonhere": "nocolonhere"},
		},
		"empty document": {
			in:   "",
			want: nvd.Meta{},
		},
		"blank lines are skipped": {
			in:   "\r\nsize:1\r\n\r\n",
			want: nvd.Meta{"size": "1"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := nvd.ParseMeta(tt.in)
			if diff := pretty.Compare(got, tt.want); diff != "" {
				t.Errorf("ParseMeta diff: (-got +want)\n%s", diff)
			}
		})
	}
}
