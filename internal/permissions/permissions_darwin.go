//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophonePermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

import (
	"fmt"

	"github.com/rs/zerolog"
)

const (
	PermissionNotDetermined = 0
	PermissionRestricted    = 1
	PermissionDenied        = 2
	PermissionAuthorized    = 3
)

// CheckMicrophone returns the current microphone permission status
func CheckMicrophone() (int, error) {
	status := int(C.checkMicrophonePermission())
	return status, nil
}

// RequestMicrophone triggers the system microphone permission dialog
func RequestMicrophone() error {
	C.requestMicrophonePermission()
	return nil
}

// EnsureCapture checks that audio input may be recorded. macOS routes both
// microphones and loopback drivers such as BlackHole through the microphone
// permission.
func EnsureCapture(log zerolog.Logger) error {
	status, _ := CheckMicrophone()
	switch status {
	case PermissionAuthorized:
		return nil
	case PermissionNotDetermined:
		log.Warn().Msg("Microphone permission required, requesting access")
		RequestMicrophone()
		return fmt.Errorf("permissions: microphone access not yet granted, retry after accepting the prompt")
	default:
		log.Warn().Msg("Microphone permission denied; enable it in System Settings → Privacy & Security → Microphone")
		return fmt.Errorf("permissions: microphone access denied")
	}
}
