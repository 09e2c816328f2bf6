package provider

import (
	"errors"
	"reflect"
	"testing"
)

func TestRegistry_LookupUnknown(t *testing.T) {
	reg := DefaultRegistry()

	_, err := reg.Lookup("hyperlocal9000")
	if err == nil {
		t.Fatal("Lookup(unknown) returned nil error")
	}
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("error = %v, want ErrUnknownProvider", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	reg := NewRegistry(
		Config{Name: "zeta", Weight: 1},
		Config{Name: "alpha", Weight: 1},
	)
	want := []string{"alpha", "zeta"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRegistry_Weight(t *testing.T) {
	reg := NewRegistry(Config{Name: "ecmwf", Weight: 1.3})

	if got := reg.Weight("ecmwf"); got != 1.3 {
		t.Errorf("Weight(ecmwf) = %g, want 1.3", got)
	}
	if got := reg.Weight("unknown"); got != 1.0 {
		t.Errorf("Weight(unknown) = %g, want 1.0 default", got)
	}
}

func TestDefaultRegistry_KnownModels(t *testing.T) {
	reg := DefaultRegistry()
	for _, name := range []string{"ecmwf", "ukmo", "icon", "gfs", "gem"} {
		cfg, err := reg.Lookup(name)
		if err != nil {
			t.Errorf("Lookup(%s): %v", name, err)
			continue
		}
		if cfg.BaseURL == "" || cfg.Weight <= 0 {
			t.Errorf("Lookup(%s) = %+v, want base URL and positive weight", name, cfg)
		}
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &Error{Provider: "gfs", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is failed to unwrap provider error")
	}
	if got := err.Error(); got != "provider gfs: boom" {
		t.Errorf("Error() = %q", got)
	}
}
