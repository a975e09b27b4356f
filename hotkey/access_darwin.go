//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation

#include <ApplicationServices/ApplicationServices.h>

static int axTrusted(int prompt) {
	const void *keys[] = { kAXTrustedCheckOptionPrompt };
	const void *values[] = { prompt ? kCFBooleanTrue : kCFBooleanFalse };
	CFDictionaryRef opts = CFDictionaryCreate(NULL, keys, values, 1,
		&kCFCopyStringDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
	Boolean ok = AXIsProcessTrustedWithOptions(opts);
	CFRelease(opts);
	return ok ? 1 : 0;
}
*/
import "C"

// IsAccessibilityEnabled reports whether the process is trusted to observe
// global key events. With prompt set, macOS shows the permission dialog.
func IsAccessibilityEnabled(prompt bool) bool {
	p := C.int(0)
	if prompt {
		p = 1
	}
	return C.axTrusted(p) == 1
}
