package system

// Logging shape shared with the app logger.
type logger interface {
	Infof(string, string, ...interface{})
	Errorf(string, string, ...interface{})
}

// HideCursor writes the ANSI escape to hide the cursor to the active VT.
func HideCursor() error { return writeVT("\x1b[?25l") }

// ShowCursor undoes HideCursor.
func ShowCursor() error { return writeVT("\x1b[?25h") }

// EnterGraphics switches the console to graphics mode and hides the cursor,
// logging each step. The returned function restores the console; it is safe
// to call even when entering failed.
func EnterGraphics(l logger) (restore func()) {
	logStep(l, "KD_GRAPHICS set", "KD_GRAPHICS failed", SetGraphicsMode())
	logStep(l, "cursor hidden", "hide cursor failed", HideCursor())
	return func() {
		logStep(l, "cursor shown", "show cursor failed", ShowCursor())
		logStep(l, "KD_TEXT set", "KD_TEXT failed", RestoreTextMode())
	}
}

func logStep(l logger, ok, failed string, err error) {
	if l == nil {
		return
	}
	if err != nil {
		l.Errorf("tty", "%s: %v", failed, err)
		return
	}
	l.Infof("tty", "%s", ok)
}
