package etcpak_test

import (
	"errors"
	"testing"

	"github.com/wolfpld/etcpak/etcpak"
)

func TestErrorString_Names(t *testing.T) {
	cases := []struct {
		code etcpak.ErrorCode
		want string
	}{
		{etcpak.Success, "ETCPAK_SUCCESS"},
		{etcpak.ErrBadParam, "ETCPAK_ERR_BAD_PARAM"},
		{etcpak.ErrBadFormat, "ETCPAK_ERR_BAD_FORMAT"},
		{etcpak.ErrBadMagic, "ETCPAK_ERR_BAD_MAGIC"},
		{etcpak.ErrBadDimensions, "ETCPAK_ERR_BAD_DIMENSIONS"},
		{etcpak.ErrBadBlockSize, "ETCPAK_ERR_BAD_BLOCK_SIZE"},
		{etcpak.ErrShortBuffer, "ETCPAK_ERR_SHORT_BUFFER"},
		{etcpak.ErrBadContext, "ETCPAK_ERR_BAD_CONTEXT"},
		{etcpak.ErrNotImplemented, "ETCPAK_ERR_NOT_IMPLEMENTED"},
		{etcpak.ErrBadConfig, "ETCPAK_ERR_BAD_CONFIG"},
	}

	for _, c := range cases {
		if got := etcpak.ErrorString(c.code); got != c.want {
			t.Fatalf("ErrorString(%d): got %q want %q", uint32(c.code), got, c.want)
		}
	}

	if got := etcpak.ErrorString(etcpak.ErrorCode(0xDEADBEEF)); got != "" {
		t.Fatalf("ErrorString(unknown): got %q want %q", got, "")
	}
}

func TestErrorCodeOf(t *testing.T) {
	if got := etcpak.ErrorCodeOf(nil); got != etcpak.Success {
		t.Fatalf("ErrorCodeOf(nil): got %v want %v", got, etcpak.Success)
	}

	if _, err := etcpak.ConfigInit(etcpak.Format(99), etcpak.EncodeMedium); err == nil {
		t.Fatalf("ConfigInit: got nil error, want error")
	} else if got := etcpak.ErrorCodeOf(err); got != etcpak.ErrBadFormat {
		t.Fatalf("ErrorCodeOf(ConfigInit bad format): got %v want %v", got, etcpak.ErrBadFormat)
	}

	if got := etcpak.ErrorCodeOf(errors.New("some other error")); got != etcpak.ErrBadParam {
		t.Fatalf("ErrorCodeOf(non-etcpak): got %v want %v", got, etcpak.ErrBadParam)
	}
}

func TestErrorIs_MatchesCode(t *testing.T) {
	_, err := etcpak.ParseHeader([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	if !errors.Is(err, &etcpak.Error{Code: etcpak.ErrBadMagic}) {
		t.Fatalf("ParseHeader(garbage): got %v, want ErrBadMagic", err)
	}
	if errors.Is(err, &etcpak.Error{Code: etcpak.ErrBadFormat}) {
		t.Fatalf("ParseHeader(garbage): unexpectedly matched ErrBadFormat")
	}
}
