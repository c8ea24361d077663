package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestPersistence(t *testing.T) {
	if Persistence("read", "groups/g", nil) != nil {
		t.Error("nil error must stay nil")
	}

	cause := errors.New("permission denied")
	err := fmt.Errorf("handler: %w", Persistence("increment", "groups/g/count", cause))

	if !IsPersistence(err) {
		t.Error("wrapped PersistenceError not recognized")
	}
	if !errors.Is(err, cause) {
		t.Error("store diagnostic not reachable with errors.Is")
	}
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "increment" || pe.Path != "groups/g/count" {
		t.Errorf("unexpected PersistenceError %+v", pe)
	}
	if IsPersistence(ErrIdentityUnavailable) {
		t.Error("identity error classified as persistence")
	}
}

func TestMembershipWriteFailure(t *testing.T) {
	cause := errors.New("quota")
	err := MembershipWriteFailure{GroupID: "g", ParticipantID: "p", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("cause not reachable")
	}
	if err.Error() != "membership g/p not recorded: quota" {
		t.Errorf("Error: %q", err.Error())
	}
}
