package conversation

import (
	"errors"
	"strings"

	"github.com/yanmxa/hezell/internal/provider"
)

var (
	// ErrBusy is returned when a turn is already in flight.
	ErrBusy = errors.New("a turn is already in progress")
	// ErrEmptyPrompt is returned for blank text with nothing staged.
	ErrEmptyPrompt = errors.New("empty prompt")
	// ErrUnknownMessage is returned when a message id is not in the conversation.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrUnknownSession is returned when a session id is not in the store.
	ErrUnknownSession = errors.New("unknown session")
	// ErrUnknownPersona is returned for a persona the builder does not know.
	ErrUnknownPersona = errors.New("unknown persona")
	// ErrUnsupported is returned when a flag does not apply to the active engine.
	ErrUnsupported = errors.New("not supported by the active engine")
)

// FailureKind is the user-facing category of a failed turn.
type FailureKind int

const (
	FailureConnection FailureKind = iota
	FailureQuota
	FailureSafety
	// FailureImage is an image turn whose response carried no image.
	FailureImage
	// FailureImageBilling is an image request rejected for lack of billing.
	FailureImageBilling
	// FailureAttachment is a file the active endpoint cannot read.
	FailureAttachment
)

func (k FailureKind) String() string {
	switch k {
	case FailureQuota:
		return "quota"
	case FailureSafety:
		return "safety"
	case FailureImage:
		return "image"
	case FailureImageBilling:
		return "image billing"
	case FailureAttachment:
		return "attachment"
	}
	return "connection"
}

// Failure is a classified turn error.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f Failure) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return f.Kind.String() + ": " + f.Err.Error()
}

func (f Failure) Unwrap() error { return f.Err }

const (
	quotaText = "⚠️ **Batas Kuota Tercapai / Error Billing**\n\n" +
		"Model Pro atau Image memerlukan akun berbayar atau telah mencapai batas harian. " +
		"Mohon beralih ke model **Hezell Flash 2.5** atau **Hezell Lite 2.0** yang lebih stabil dan gratis."
	safetyText       = "⚠️ **Konten Dibatasi**\n\nPermintaan Anda terdeteksi melanggar filter keamanan AI."
	imageText        = "⚠️ **Gambar Tidak Dihasilkan**\n\nModel tidak mengembalikan gambar. Coba ubah deskripsi atau ulangi permintaan."
	imageBillingText = "⚠️ **Gagal Membuat Gambar**\n\nFitur ini memerlukan API Key dengan billing aktif di Google Cloud."
	attachmentText   = "⚠️ **Lampiran Tidak Didukung**\n\nMesin yang sedang dipakai tidak dapat membaca jenis file ini. Gunakan mesin Gemini untuk dokumen."
	connectionText   = "⚠️ **Koneksi Gagal**\n\nTerjadi kesalahan jaringan atau API Key tidak valid."
)

// QuotaSuggestions are offered after a quota failure.
var QuotaSuggestions = []string{"Ganti ke Flash 2.5", "Ganti ke Lite 2.0", "Coba lagi"}

// Classify maps a turn error onto a failure category. Provider sentinels are
// checked first; errors from SDKs that do not wrap them fall back to message
// matching.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return Failure{Kind: FailureConnection}
	case errors.Is(err, provider.ErrQuota):
		return Failure{Kind: FailureQuota, Err: err}
	case errors.Is(err, provider.ErrSafety):
		return Failure{Kind: FailureSafety, Err: err}
	case errors.Is(err, provider.ErrNoImage):
		return Failure{Kind: FailureImage, Err: err}
	case errors.Is(err, provider.ErrUnsupportedAttachment):
		return Failure{Kind: FailureAttachment, Err: err}
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "429"), strings.Contains(lower, "quota"), strings.Contains(lower, "billing"):
		return Failure{Kind: FailureQuota, Err: err}
	case strings.Contains(msg, "SAFETY"):
		return Failure{Kind: FailureSafety, Err: err}
	case strings.Contains(msg, "Image Generation Failed"):
		return Failure{Kind: FailureImageBilling, Err: err}
	}
	return Failure{Kind: FailureConnection, Err: err}
}

// Explain returns the localized message text and any follow-up suggestions.
func (f Failure) Explain() (string, []string) {
	switch f.Kind {
	case FailureQuota:
		return quotaText, append([]string(nil), QuotaSuggestions...)
	case FailureSafety:
		return safetyText, nil
	case FailureImage:
		return imageText, nil
	case FailureImageBilling:
		return imageBillingText, nil
	case FailureAttachment:
		return attachmentText, nil
	}
	return connectionText, nil
}
