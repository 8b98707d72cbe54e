package chat

import (
	"slices"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/cjrutherford/qd-messages/internal/config"
	"github.com/cjrutherford/qd-messages/internal/directory"
)

// FormMode selects what the channel form submits.
type FormMode int

const (
	FormCreateChannel FormMode = iota
	FormImportChannel
	FormCreateFolder
)

// FormRequest is what the user submitted.
type FormRequest struct {
	Mode FormMode
	// Name is the channel or folder name. Empty for imports.
	Name string
	// Code is the invite code. Only set for imports.
	Code                   string
	Target                 directory.FolderPath
	IncludeFolderStructure bool
}

var formTitles = map[FormMode]string{
	FormCreateChannel: " Create Channel ",
	FormImportChannel: " Import Channel ",
	FormCreateFolder:  " New Folder ",
}

// ChannelForm is the modal used by the create, import and new folder
// actions.
type ChannelForm struct {
	*tview.Flex
	cfg      *config.Config
	form     *tview.Form
	status   *tview.TextView
	mode     FormMode
	text     string
	folders  []directory.FolderPath
	folder   int
	include  bool
	busy     bool
	onSubmit func(FormRequest)
	onClose  func()
}

// NewChannelForm creates an empty channel form.
func NewChannelForm(cfg *config.Config) *ChannelForm {
	f := &ChannelForm{cfg: cfg}

	f.form = tview.NewForm()
	f.form.SetBorder(true)
	f.form.SetInputCapture(f.handleInput)

	f.status = tview.NewTextView().SetDynamicColors(true)

	f.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(f.form, 0, 1, true).
		AddItem(f.status, 1, 0, false)

	return f
}

// SetOnSubmit sets the callback invoked with a validated request.
func (f *ChannelForm) SetOnSubmit(fn func(FormRequest)) {
	f.onSubmit = fn
}

// SetOnClose sets the callback invoked when the form is dismissed.
func (f *ChannelForm) SetOnClose(fn func()) {
	f.onClose = fn
}

// Open rebuilds the form for mode. folders lists the possible targets;
// the root is always offered first.
func (f *ChannelForm) Open(mode FormMode, folders []directory.FolderPath, target directory.FolderPath, includeDefault bool) {
	f.mode = mode
	f.text = ""
	f.include = includeDefault
	f.busy = false
	f.folders = append([]directory.FolderPath{{}}, slices.DeleteFunc(slices.Clone(folders), directory.FolderPath.IsRoot)...)
	f.folder = 0
	for i, p := range f.folders {
		if slices.Equal(p, target) {
			f.folder = i
			break
		}
	}

	labels := make([]string, len(f.folders))
	for i, p := range f.folders {
		labels[i] = p.String()
	}

	f.form.Clear(true)
	f.form.SetTitle(formTitles[mode])

	label := "Name"
	if mode == FormImportChannel {
		label = "Invite code"
	}
	f.form.AddInputField(label, "", 40, nil, func(text string) { f.text = text })

	folderLabel := "Folder"
	if mode == FormCreateFolder {
		folderLabel = "Parent"
	}
	f.form.AddDropDown(folderLabel, labels, f.folder, func(_ string, i int) { f.folder = i })

	if mode == FormImportChannel {
		f.form.AddCheckbox("Include folder structure", f.include, func(checked bool) { f.include = checked })
	}

	submit := "Create"
	if mode == FormImportChannel {
		submit = "Import"
	}
	f.form.AddButton(submit, f.submit)
	f.form.AddButton("Cancel", f.close)
	f.form.SetFocus(0)

	f.status.SetText("")
}

// Mode returns the current form mode.
func (f *ChannelForm) Mode() FormMode {
	return f.mode
}

// Request returns the request the form would submit now.
func (f *ChannelForm) Request() FormRequest {
	req := FormRequest{Mode: f.mode}
	if f.folder >= 0 && f.folder < len(f.folders) {
		req.Target = f.folders[f.folder]
	}
	text := strings.TrimSpace(f.text)
	if f.mode == FormImportChannel {
		req.Code = text
		req.IncludeFolderStructure = f.include
	} else {
		req.Name = text
	}
	return req
}

// SetStatus updates the status line below the form.
func (f *ChannelForm) SetStatus(text string) {
	f.status.SetText(" " + text)
}

// SetBusy blocks further submissions while an operation is running.
func (f *ChannelForm) SetBusy(busy bool) {
	f.busy = busy
}

func (f *ChannelForm) submit() {
	if f.busy {
		return
	}
	req := f.Request()
	if req.Name == "" && req.Code == "" {
		if f.mode == FormImportChannel {
			f.SetStatus("Enter an invite code")
		} else {
			f.SetStatus("Enter a name")
		}
		return
	}
	if f.onSubmit != nil {
		f.onSubmit(req)
	}
}

func (f *ChannelForm) close() {
	if f.onClose != nil {
		f.onClose()
	}
}

func (f *ChannelForm) handleInput(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyEscape {
		f.close()
		return nil
	}
	return event
}
