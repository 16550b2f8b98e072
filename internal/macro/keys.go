package macro

import (
	"fmt"
	"strings"
)

// Key is a logical keyboard key. Its value is the Linux evdev key code, which is
// what ydotool consumes directly.
type Key uint16

// Keys understood by the recorder and every synthesis backend.
const (
	KeyEsc        Key = 1
	Key1          Key = 2
	Key2          Key = 3
	Key3          Key = 4
	Key4          Key = 5
	Key5          Key = 6
	Key6          Key = 7
	Key7          Key = 8
	Key8          Key = 9
	Key9          Key = 10
	Key0          Key = 11
	KeyMinus      Key = 12
	KeyEqual      Key = 13
	KeyBackspace  Key = 14
	KeyTab        Key = 15
	KeyQ          Key = 16
	KeyW          Key = 17
	KeyE          Key = 18
	KeyR          Key = 19
	KeyT          Key = 20
	KeyY          Key = 21
	KeyU          Key = 22
	KeyI          Key = 23
	KeyO          Key = 24
	KeyP          Key = 25
	KeyLeftBrace  Key = 26
	KeyRightBrace Key = 27
	KeyEnter      Key = 28
	KeyLeftCtrl   Key = 29
	KeyA          Key = 30
	KeyS          Key = 31
	KeyD          Key = 32
	KeyF          Key = 33
	KeyG          Key = 34
	KeyH          Key = 35
	KeyJ          Key = 36
	KeyK          Key = 37
	KeyL          Key = 38
	KeySemicolon  Key = 39
	KeyApostrophe Key = 40
	KeyGrave      Key = 41
	KeyLeftShift  Key = 42
	KeyBackslash  Key = 43
	KeyZ          Key = 44
	KeyX          Key = 45
	KeyC          Key = 46
	KeyV          Key = 47
	KeyB          Key = 48
	KeyN          Key = 49
	KeyM          Key = 50
	KeyComma      Key = 51
	KeyDot        Key = 52
	KeySlash      Key = 53
	KeyRightShift Key = 54
	KeyLeftAlt    Key = 56
	KeySpace      Key = 57
	KeyCapsLock   Key = 58
	KeyF1         Key = 59
	KeyF2         Key = 60
	KeyF3         Key = 61
	KeyF4         Key = 62
	KeyF5         Key = 63
	KeyF6         Key = 64
	KeyF7         Key = 65
	KeyF8         Key = 66
	KeyF9         Key = 67
	KeyF10        Key = 68
	KeyNumLock    Key = 69
	KeyScrollLock Key = 70
	KeyF11        Key = 87
	KeyF12        Key = 88
	KeyRightCtrl  Key = 97
	KeySysRq      Key = 99
	KeyRightAlt   Key = 100
	KeyHome       Key = 102
	KeyUp         Key = 103
	KeyPageUp     Key = 104
	KeyLeft       Key = 105
	KeyRight      Key = 106
	KeyEnd        Key = 107
	KeyDown       Key = 108
	KeyPageDown   Key = 109
	KeyInsert     Key = 110
	KeyDelete     Key = 111
	KeyPause      Key = 119
	KeyLeftMeta   Key = 125
	KeyRightMeta  Key = 126
	KeyCompose    Key = 127
)

type keyInfo struct {
	name    string
	aliases []string
	// hook is the libuiohook virtual code reported by the global listener.
	hook    uint16
	robotgo string
}

var keyTable = map[Key]keyInfo{
	KeyEsc:        {name: "esc", aliases: []string{"escape"}, hook: 0x0001, robotgo: "esc"},
	Key1:          {name: "1", hook: 0x0002, robotgo: "1"},
	Key2:          {name: "2", hook: 0x0003, robotgo: "2"},
	Key3:          {name: "3", hook: 0x0004, robotgo: "3"},
	Key4:          {name: "4", hook: 0x0005, robotgo: "4"},
	Key5:          {name: "5", hook: 0x0006, robotgo: "5"},
	Key6:          {name: "6", hook: 0x0007, robotgo: "6"},
	Key7:          {name: "7", hook: 0x0008, robotgo: "7"},
	Key8:          {name: "8", hook: 0x0009, robotgo: "8"},
	Key9:          {name: "9", hook: 0x000A, robotgo: "9"},
	Key0:          {name: "0", hook: 0x000B, robotgo: "0"},
	KeyMinus:      {name: "minus", aliases: []string{"-"}, hook: 0x000C, robotgo: "-"},
	KeyEqual:      {name: "equal", aliases: []string{"="}, hook: 0x000D, robotgo: "="},
	KeyBackspace:  {name: "backspace", hook: 0x000E, robotgo: "backspace"},
	KeyTab:        {name: "tab", hook: 0x000F, robotgo: "tab"},
	KeyQ:          {name: "q", hook: 0x0010, robotgo: "q"},
	KeyW:          {name: "w", hook: 0x0011, robotgo: "w"},
	KeyE:          {name: "e", hook: 0x0012, robotgo: "e"},
	KeyR:          {name: "r", hook: 0x0013, robotgo: "r"},
	KeyT:          {name: "t", hook: 0x0014, robotgo: "t"},
	KeyY:          {name: "y", hook: 0x0015, robotgo: "y"},
	KeyU:          {name: "u", hook: 0x0016, robotgo: "u"},
	KeyI:          {name: "i", hook: 0x0017, robotgo: "i"},
	KeyO:          {name: "o", hook: 0x0018, robotgo: "o"},
	KeyP:          {name: "p", hook: 0x0019, robotgo: "p"},
	KeyLeftBrace:  {name: "leftbrace", aliases: []string{"["}, hook: 0x001A, robotgo: "["},
	KeyRightBrace: {name: "rightbrace", aliases: []string{"]"}, hook: 0x001B, robotgo: "]"},
	KeyEnter:      {name: "enter", aliases: []string{"return"}, hook: 0x001C, robotgo: "enter"},
	KeyLeftCtrl:   {name: "leftctrl", aliases: []string{"ctrl", "control", "lctrl"}, hook: 0x001D, robotgo: "lctrl"},
	KeyA:          {name: "a", hook: 0x001E, robotgo: "a"},
	KeyS:          {name: "s", hook: 0x001F, robotgo: "s"},
	KeyD:          {name: "d", hook: 0x0020, robotgo: "d"},
	KeyF:          {name: "f", hook: 0x0021, robotgo: "f"},
	KeyG:          {name: "g", hook: 0x0022, robotgo: "g"},
	KeyH:          {name: "h", hook: 0x0023, robotgo: "h"},
	KeyJ:          {name: "j", hook: 0x0024, robotgo: "j"},
	KeyK:          {name: "k", hook: 0x0025, robotgo: "k"},
	KeyL:          {name: "l", hook: 0x0026, robotgo: "l"},
	KeySemicolon:  {name: "semicolon", aliases: []string{";"}, hook: 0x0027, robotgo: ";"},
	KeyApostrophe: {name: "apostrophe", aliases: []string{"'", "quote"}, hook: 0x0028, robotgo: "'"},
	KeyGrave:      {name: "grave", aliases: []string{"`", "backquote"}, hook: 0x0029, robotgo: "`"},
	KeyLeftShift:  {name: "leftshift", aliases: []string{"shift", "lshift"}, hook: 0x002A, robotgo: "lshift"},
	KeyBackslash:  {name: "backslash", aliases: []string{`\`}, hook: 0x002B, robotgo: `\`},
	KeyZ:          {name: "z", hook: 0x002C, robotgo: "z"},
	KeyX:          {name: "x", hook: 0x002D, robotgo: "x"},
	KeyC:          {name: "c", hook: 0x002E, robotgo: "c"},
	KeyV:          {name: "v", hook: 0x002F, robotgo: "v"},
	KeyB:          {name: "b", hook: 0x0030, robotgo: "b"},
	KeyN:          {name: "n", hook: 0x0031, robotgo: "n"},
	KeyM:          {name: "m", hook: 0x0032, robotgo: "m"},
	KeyComma:      {name: "comma", aliases: []string{","}, hook: 0x0033, robotgo: ","},
	KeyDot:        {name: "dot", aliases: []string{".", "period"}, hook: 0x0034, robotgo: "."},
	KeySlash:      {name: "slash", aliases: []string{"/"}, hook: 0x0035, robotgo: "/"},
	KeyRightShift: {name: "rightshift", aliases: []string{"rshift"}, hook: 0x0036, robotgo: "rshift"},
	KeyLeftAlt:    {name: "leftalt", aliases: []string{"alt", "lalt"}, hook: 0x0038, robotgo: "lalt"},
	KeySpace:      {name: "space", hook: 0x0039, robotgo: "space"},
	KeyCapsLock:   {name: "capslock", hook: 0x003A, robotgo: "capslock"},
	KeyF1:         {name: "f1", hook: 0x003B, robotgo: "f1"},
	KeyF2:         {name: "f2", hook: 0x003C, robotgo: "f2"},
	KeyF3:         {name: "f3", hook: 0x003D, robotgo: "f3"},
	KeyF4:         {name: "f4", hook: 0x003E, robotgo: "f4"},
	KeyF5:         {name: "f5", hook: 0x003F, robotgo: "f5"},
	KeyF6:         {name: "f6", hook: 0x0040, robotgo: "f6"},
	KeyF7:         {name: "f7", hook: 0x0041, robotgo: "f7"},
	KeyF8:         {name: "f8", hook: 0x0042, robotgo: "f8"},
	KeyF9:         {name: "f9", hook: 0x0043, robotgo: "f9"},
	KeyF10:        {name: "f10", hook: 0x0044, robotgo: "f10"},
	KeyNumLock:    {name: "numlock", hook: 0x0045, robotgo: "numlock"},
	KeyScrollLock: {name: "scrolllock", hook: 0x0046, robotgo: "scrolllock"},
	KeyF11:        {name: "f11", hook: 0x0057, robotgo: "f11"},
	KeyF12:        {name: "f12", hook: 0x0058, robotgo: "f12"},
	KeyRightCtrl:  {name: "rightctrl", aliases: []string{"rctrl"}, hook: 0x0E1D, robotgo: "rctrl"},
	KeySysRq:      {name: "sysrq", aliases: []string{"printscreen", "print"}, hook: 0x0E37, robotgo: "printscreen"},
	KeyRightAlt:   {name: "rightalt", aliases: []string{"ralt", "altgr"}, hook: 0x0E38, robotgo: "ralt"},
	KeyHome:       {name: "home", hook: 0x0E47, robotgo: "home"},
	KeyUp:         {name: "up", hook: 0xE048, robotgo: "up"},
	KeyPageUp:     {name: "pageup", hook: 0x0E49, robotgo: "pageup"},
	KeyLeft:       {name: "left", hook: 0xE04B, robotgo: "left"},
	KeyRight:      {name: "right", hook: 0xE04D, robotgo: "right"},
	KeyEnd:        {name: "end", hook: 0x0E4F, robotgo: "end"},
	KeyDown:       {name: "down", hook: 0xE050, robotgo: "down"},
	KeyPageDown:   {name: "pagedown", hook: 0x0E51, robotgo: "pagedown"},
	KeyInsert:     {name: "insert", hook: 0x0E52, robotgo: "insert"},
	KeyDelete:     {name: "delete", aliases: []string{"del"}, hook: 0x0E53, robotgo: "delete"},
	KeyPause:      {name: "pause", hook: 0x0E45, robotgo: "pause"},
	KeyLeftMeta:   {name: "leftmeta", aliases: []string{"super", "meta", "lmeta", "win", "cmd"}, hook: 0x0E5B, robotgo: "lcmd"},
	KeyRightMeta:  {name: "rightmeta", aliases: []string{"rmeta", "rsuper"}, hook: 0x0E5C, robotgo: "rcmd"},
	KeyCompose:    {name: "compose", aliases: []string{"menu"}, hook: 0x0E5D, robotgo: "menu"},
}

var (
	keysByName map[string]Key
	keysByHook map[uint16]Key
)

func init() {
	keysByName = make(map[string]Key, len(keyTable)*2)
	keysByHook = make(map[uint16]Key, len(keyTable))
	for k, info := range keyTable {
		keysByName[info.name] = k
		for _, alias := range info.aliases {
			keysByName[alias] = k
		}
		keysByHook[info.hook] = k
	}
}

// ParseKey resolves a key name or alias, case-insensitively.
func ParseKey(name string) (Key, error) {
	k, ok := keysByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown key %q", name)
	}
	return k, nil
}

// KeyFromHook maps a libuiohook virtual key code onto a Key.
func KeyFromHook(code uint16) (Key, bool) {
	k, ok := keysByHook[code]
	return k, ok
}

// KeyFromCode maps an evdev key code onto a Key.
func KeyFromCode(code uint16) (Key, bool) {
	k := Key(code)
	return k, k.Valid()
}

// Valid reports whether k is part of the known vocabulary.
func (k Key) Valid() bool {
	_, ok := keyTable[k]
	return ok
}

// Code returns the evdev key code.
func (k Key) Code() uint16 {
	return uint16(k)
}

// HookCode returns the libuiohook virtual code for k.
func (k Key) HookCode() uint16 {
	return keyTable[k].hook
}

// RobotgoName returns the key name robotgo expects.
func (k Key) RobotgoName() string {
	return keyTable[k].robotgo
}

func (k Key) String() string {
	if info, ok := keyTable[k]; ok {
		return info.name
	}
	return fmt.Sprintf("key(%d)", uint16(k))
}

func (k Key) MarshalText() ([]byte, error) {
	info, ok := keyTable[k]
	if !ok {
		return nil, fmt.Errorf("unknown key code %d", uint16(k))
	}
	return []byte(info.name), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Button is a mouse button.
type Button uint8

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
	ButtonSide
	ButtonExtra
)

var buttonNames = []string{"left", "right", "middle", "side", "extra"}

// ParseButton resolves a button name, case-insensitively.
func ParseButton(name string) (Button, error) {
	lowered := strings.ToLower(strings.TrimSpace(name))
	for i, n := range buttonNames {
		if n == lowered {
			return Button(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mouse button %q", name)
}

// ButtonFromHook maps a libuiohook button number (1-based) onto a Button.
func ButtonFromHook(code uint16) (Button, bool) {
	switch code {
	case 1:
		return ButtonLeft, true
	case 2:
		return ButtonRight, true
	case 3:
		return ButtonMiddle, true
	case 4:
		return ButtonSide, true
	case 5:
		return ButtonExtra, true
	}
	return 0, false
}

// buttonCodeBase is BTN_LEFT; the other buttons follow in Button order.
const buttonCodeBase = 0x110

// ButtonFromCode maps an evdev BTN_* code onto a Button.
func ButtonFromCode(code uint16) (Button, bool) {
	if code < buttonCodeBase {
		return 0, false
	}
	b := Button(code - buttonCodeBase)
	return b, int(code-buttonCodeBase) < len(buttonNames)
}

// Code returns the evdev BTN_* code for b.
func (b Button) Code() uint16 {
	return buttonCodeBase + uint16(b)
}

func (b Button) Valid() bool {
	return int(b) < len(buttonNames)
}

func (b Button) String() string {
	if b.Valid() {
		return buttonNames[b]
	}
	return fmt.Sprintf("button(%d)", uint8(b))
}

func (b Button) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("unknown mouse button %d", uint8(b))
	}
	return []byte(buttonNames[b]), nil
}

func (b *Button) UnmarshalText(text []byte) error {
	parsed, err := ParseButton(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
