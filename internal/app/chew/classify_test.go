package chew

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hickar/mailchew/internal/app/bodystructure"
)

func TestPartFilename(t *testing.T) {
	tests := []struct {
		name     string
		node     *bodystructure.Node
		expected string
	}{
		{
			name: "name wins over filename",
			node: &bodystructure.Node{
				Params:            map[string]string{"name": "a.txt"},
				DispositionParams: map[string]string{"filename": "b.txt"},
			},
			expected: "a.txt",
		},
		{
			name: "encoded word in name",
			node: &bodystructure.Node{
				Params: map[string]string{"name": "=?UTF-8?Q?r=C3=A9sum=C3=A9.pdf?="},
			},
			expected: "résumé.pdf",
		},
		{
			name: "rfc2231 name",
			node: &bodystructure.Node{
				Params:            map[string]string{"name*": "utf-8''r%C3%A9sum%C3%A9.pdf"},
				DispositionParams: map[string]string{"filename": "b.txt"},
			},
			expected: "résumé.pdf",
		},
		{
			name: "disposition filename",
			node: &bodystructure.Node{
				DispositionParams: map[string]string{"filename": "b.txt", "filename*": "utf-8''c.txt"},
			},
			expected: "b.txt",
		},
		{
			name: "rfc2231 filename keeps underscores and spaces",
			node: &bodystructure.Node{
				DispositionParams: map[string]string{"filename*": "iso-8859-1'en'my_file%20%E9t%E9.txt"},
			},
			expected: "my_file été.txt",
		},
		{
			name: "rfc2231 without charset",
			node: &bodystructure.Node{
				DispositionParams: map[string]string{"filename*": "''plain%2Etxt"},
			},
			expected: "plain.txt",
		},
		{
			name:     "nothing",
			node:     &bodystructure.Node{Params: map[string]string{"charset": "utf-8"}},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PartFilename(tt.node))
		})
	}
}

func TestEstimatePartSize(t *testing.T) {
	assert.Equal(t, int64(57), EstimatePartSize(&bodystructure.Node{Encoding: "base64", Size: 78}))
	assert.Equal(t, int64(0), EstimatePartSize(&bodystructure.Node{Encoding: "base64", Size: 1}))
	assert.Equal(t, int64(760), EstimatePartSize(&bodystructure.Node{Encoding: "base64", Size: 1041}))
	assert.Equal(t, int64(100), EstimatePartSize(&bodystructure.Node{Encoding: "quoted-printable", Size: 100}))
	assert.Equal(t, int64(100), EstimatePartSize(&bodystructure.Node{Encoding: "7bit", Size: 100}))
	assert.Equal(t, int64(100), EstimatePartSize(&bodystructure.Node{Size: 100}))
}

func TestClassifyPart(t *testing.T) {
	tests := []struct {
		name        string
		node        *bodystructure.Node
		parent      string
		outcome     Outcome
		disposition string
	}{
		{
			name:        "plain text body",
			node:        &bodystructure.Node{Type: "text", Subtype: "plain"},
			outcome:     OutcomeBody,
			disposition: dispositionInline,
		},
		{
			name:        "html body with explicit inline",
			node:        &bodystructure.Node{Type: "text", Subtype: "html", Disposition: "inline"},
			outcome:     OutcomeBody,
			disposition: dispositionInline,
		},
		{
			name:        "named text is an attachment",
			node:        &bodystructure.Node{Type: "text", Subtype: "plain", Params: map[string]string{"name": "notes.txt"}},
			outcome:     OutcomeAttachment,
			disposition: dispositionAttachment,
		},
		{
			name:        "inline image without content id is forced to attachment",
			node:        &bodystructure.Node{Type: "image", Subtype: "png", Disposition: "inline"},
			outcome:     OutcomeAttachment,
			disposition: dispositionAttachment,
		},
		{
			name:        "inline image with content id is related",
			node:        &bodystructure.Node{Type: "image", Subtype: "png", Disposition: "inline", ID: "<img1>"},
			outcome:     OutcomeRelated,
			disposition: dispositionInline,
		},
		{
			name:        "image under related without disposition",
			node:        &bodystructure.Node{Type: "image", Subtype: "gif", ID: "<img2>"},
			parent:      "related",
			outcome:     OutcomeRelated,
			disposition: dispositionInline,
		},
		{
			name:        "image under mixed without disposition",
			node:        &bodystructure.Node{Type: "image", Subtype: "gif", ID: "<img2>"},
			parent:      "mixed",
			outcome:     OutcomeAttachment,
			disposition: dispositionAttachment,
		},
		{
			name:        "inline pdf with content id is still an attachment",
			node:        &bodystructure.Node{Type: "application", Subtype: "pdf", Disposition: "inline", ID: "<pdf>"},
			outcome:     OutcomeAttachment,
			disposition: dispositionAttachment,
		},
		{
			name:        "unknown explicit disposition defaults to inline",
			node:        &bodystructure.Node{Type: "text", Subtype: "html", Disposition: "x-weird"},
			outcome:     OutcomeBody,
			disposition: dispositionInline,
		},
		{
			name:        "attachment text",
			node:        &bodystructure.Node{Type: "text", Subtype: "plain", Disposition: "attachment"},
			outcome:     OutcomeAttachment,
			disposition: dispositionAttachment,
		},
		{
			name:        "pgp signature is discarded",
			node:        &bodystructure.Node{Type: "application", Subtype: "pgp-signature", Params: map[string]string{"name": "signature.asc"}},
			parent:      "signed",
			outcome:     OutcomeDiscard,
			disposition: dispositionAttachment,
		},
		{
			name:        "smime signature is discarded",
			node:        &bodystructure.Node{Type: "application", Subtype: "pkcs7-signature", Disposition: "attachment"},
			parent:      "signed",
			outcome:     OutcomeDiscard,
			disposition: dispositionAttachment,
		},
		{
			name:        "calendar invite is discarded",
			node:        &bodystructure.Node{Type: "text", Subtype: "calendar"},
			outcome:     OutcomeDiscard,
			disposition: dispositionInline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClassifyPart(tt.node, tt.parent)
			assert.Equal(t, tt.outcome, c.Outcome, "outcome %s", c.Outcome)
			assert.Equal(t, tt.disposition, c.Disposition)
		})
	}
}
