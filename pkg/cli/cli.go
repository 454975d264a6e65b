package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
)

const indentUnit = "    "

func indentAt(level int) string { return strings.Repeat(indentUnit, level) }

type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }
func (v *stringValue) Get() any           { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }
func (v *boolValue) Get() any       { return *v.p }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }
func (v *listValue) Get() any           { return *v.p }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

func (f *Flag) isBool() bool {
	_, ok := f.Value.(*boolValue)
	return ok
}

// FlagGroup is a family of on/off switches sharing a prefix, such as -W<name>
// and -Wno-<name>.
type FlagGroup struct {
	Name                 string
	GroupType            string
	AvailableFlagsHeader string
	Flags                []FlagGroupEntry
}

// FlagGroupEntry is one switch of a group. Enabled and Disabled record what
// was passed on the command line; Default is only shown in help.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Default  bool
	Enabled  *bool
	Disabled *bool
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	args       []string
	flagGroups []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) List(p *[]string, name, shorthand string, value []string, usage, expectedType string) {
	*p = value
	f.Var(&listValue{p}, name, shorthand, usage, strings.Join(value, ","), expectedType)
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

// AddFlagGroup registers <prefix><name> and <prefix>no-<name> for every entry.
func (f *FlagSet) AddFlagGroup(name, groupType, availableFlagsHeader string, entries []FlagGroupEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Enabled != nil {
			f.Bool(e.Enabled, e.Prefix+e.Name, "", *e.Enabled, e.Usage)
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", *e.Disabled, "Disable '"+e.Name+"'")
		}
	}
	f.flagGroups = append(f.flagGroups, FlagGroup{
		Name: name, GroupType: groupType, AvailableFlagsHeader: availableFlagsHeader, Flags: entries,
	})
}

// Parse accepts --name[=v], -name[=v] for any long flag, and -s[v] / -s v for
// shorthands. Everything else is collected as a positional argument.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = []string{}
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		switch {
		case arg == "--":
			f.args = append(f.args, arguments[i+1:]...)
			return nil
		case len(arg) < 2 || arg[0] != '-':
			f.args = append(f.args, arg)
			continue
		}

		body := strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
		name, value, hasValue := strings.Cut(body, "=")
		if flag, ok := f.flags[name]; ok {
			if err := f.setFlag(flag, "-"+name, value, hasValue, arguments, &i); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(arg, "--") {
			return fmt.Errorf("unknown flag: %s", arg)
		}

		flag, ok := f.shorthands[arg[1:2]]
		if !ok {
			return fmt.Errorf("unknown shorthand flag: -%s", arg[1:2])
		}
		rest := arg[2:]
		if err := f.setFlag(flag, "-"+flag.Shorthand, rest, rest != "", arguments, &i); err != nil {
			return err
		}
	}
	return nil
}

func (f *FlagSet) setFlag(flag *Flag, spelled, value string, hasValue bool, arguments []string, i *int) error {
	if hasValue {
		return flag.Value.Set(value)
	}
	if flag.isBool() {
		return flag.Value.Set("")
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: %s", spelled)
	}
	*i++
	return flag.Value.Set(arguments[*i])
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	Since       int
	FlagSet     *FlagSet
	Action      func(args []string) error
	Stdout      io.Writer
	Stderr      io.Writer
	help        bool
}

func NewApp(name string) *App {
	return &App{
		Name:    name,
		FlagSet: NewFlagSet(name),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func (a *App) Run(arguments []string) error {
	if a.FlagSet.Lookup("help") == nil {
		a.FlagSet.Bool(&a.help, "help", "h", false, "Display this information")
	}
	a.help = false

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(a.Stderr, err)
		a.writeUsage(a.Stderr)
		return err
	}
	if a.help {
		a.writeHelp(a.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) writeUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s %s\n", a.Name, a.Synopsis)
	fmt.Fprintf(w, "\nRun '%s --help' for all available options and flags.\n", a.Name)
}

func (a *App) writeHelp(w io.Writer) {
	var sb strings.Builder
	termWidth := terminalWidth()
	options := a.optionFlags()
	leftWidth := a.leftColumnWidth(options)

	years := strconv.Itoa(time.Now().Year())
	if a.Since > 0 && a.Since < time.Now().Year() {
		years = fmt.Sprintf("%d-%s", a.Since, years)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%sCopyright (c) %s: %s and contributors\n", indentAt(1), years, strings.Join(a.Authors, ", "))
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", indentAt(1), a.Repository)
	}
	if a.Synopsis != "" {
		fmt.Fprintf(&sb, "\n%sSynopsis\n%s%s %s\n", indentAt(1), indentAt(2), a.Name, a.Synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(&sb, "\n%sDescription\n", indentAt(1))
		for _, line := range wrapText(a.Description, termWidth-len(indentAt(2))) {
			fmt.Fprintf(&sb, "%s%s\n", indentAt(2), line)
		}
	}

	if len(options) > 0 {
		fmt.Fprintf(&sb, "\n%sOptions\n", indentAt(1))
		for _, flag := range options {
			right := ""
			if !flag.isBool() && flag.DefValue != "" {
				right = fmt.Sprintf("|%s|", flag.DefValue)
			}
			writeEntry(&sb, termWidth, leftWidth, formatFlagString(flag), flag.Usage, right)
		}
	}

	groups := append([]FlagGroup(nil), a.FlagSet.flagGroups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, group := range groups {
		writeGroup(&sb, group, termWidth, leftWidth)
	}
	fmt.Fprint(w, sb.String())
}

// optionFlags returns the plain flags, sorted, leaving out group switches.
func (a *App) optionFlags() []*Flag {
	grouped := make(map[string]bool)
	for _, group := range a.FlagSet.flagGroups {
		for _, e := range group.Flags {
			grouped[e.Prefix+e.Name] = true
			grouped[e.Prefix+"no-"+e.Name] = true
		}
	}
	var flags []*Flag
	for name, flag := range a.FlagSet.flags {
		if !grouped[name] {
			flags = append(flags, flag)
		}
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })
	return flags
}

func (a *App) leftColumnWidth(options []*Flag) int {
	width := 0
	grow := func(s string) {
		if len(s) > width {
			width = len(s)
		}
	}
	for _, flag := range options {
		grow(formatFlagString(flag))
	}
	for _, group := range a.FlagSet.flagGroups {
		if len(group.Flags) == 0 {
			continue
		}
		grow(fmt.Sprintf("-%sno-<%s>", group.Flags[0].Prefix, group.GroupType))
		for _, e := range group.Flags {
			grow(e.Name)
		}
	}
	return width
}

func formatFlagString(flag *Flag) string {
	var sb strings.Builder
	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", flag.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", flag.Name)
	if !flag.isBool() && flag.ExpectedType != "" {
		fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
	}
	return sb.String()
}

func writeEntry(sb *strings.Builder, termWidth, leftWidth int, left, usage, right string) {
	indent := indentAt(2)
	usageWidth := termWidth - len(indent) - leftWidth - 1 - len(right) - 2
	if usageWidth < 10 {
		usageWidth = 10
	}
	lines := wrapText(usage, usageWidth)
	if len(lines) == 0 {
		lines = []string{""}
	}
	if right != "" {
		fmt.Fprintf(sb, "%s%-*s %-*s  %s\n", indent, leftWidth, left, usageWidth, lines[0], right)
	} else {
		fmt.Fprintf(sb, "%s%-*s %s\n", indent, leftWidth, left, lines[0])
	}
	for _, line := range lines[1:] {
		fmt.Fprintf(sb, "%s%s %s\n", indent, strings.Repeat(" ", leftWidth), line)
	}
}

func writeGroup(sb *strings.Builder, group FlagGroup, termWidth, leftWidth int) {
	if len(group.Flags) == 0 {
		return
	}
	prefix := group.Flags[0].Prefix
	fmt.Fprintf(sb, "\n%s%s\n", indentAt(1), group.Name)
	fmt.Fprintf(sb, "%s%-*s Enable a specific %s\n", indentAt(2), leftWidth, fmt.Sprintf("-%s<%s>", prefix, group.GroupType), group.GroupType)
	fmt.Fprintf(sb, "%s%-*s Disable a specific %s\n", indentAt(2), leftWidth, fmt.Sprintf("-%sno-<%s>", prefix, group.GroupType), group.GroupType)
	if group.AvailableFlagsHeader != "" {
		fmt.Fprintf(sb, "%s%s\n", indentAt(1), group.AvailableFlagsHeader)
	}

	entries := append([]FlagGroupEntry(nil), group.Flags...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for _, e := range entries {
		state := "|-|"
		if e.Default {
			state = "|x|"
		}
		writeEntry(sb, termWidth, leftWidth, e.Name, e.Usage, state)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	if width < 20 {
		return 20
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if maxWidth <= 0 || len(words) == 0 {
		return words
	}

	var lines []string
	var line strings.Builder
	for _, word := range words {
		if line.Len() > 0 && line.Len()+1+len(word) > maxWidth {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
