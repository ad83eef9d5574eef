package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chepyr/magna-todo/internal/attachments"
	"github.com/chepyr/magna-todo/internal/store"
)

const shellHelp = `commands:
  list                      show the todos
  show <id>                 show one todo in full
  attach <path>...          add image files to the create form
  detach <name>             drop a pending image
  pending                   show the pending images
  add <title> | <content>   create a todo with the pending images
  toggle <id>               switch a todo between open and done
  rm <id>                   delete a todo
  edit <id>                 open the edit form for a todo
  title <text>              set the draft title
  content <text>            set the draft content
  save                      apply the draft, the todo goes back to open
  cancel                    close the edit form without saving
  state                     show the form and list state
  help                      show this help
  quit                      leave the shell`

var errUsage = errors.New("usage")

// shell is a line oriented session over a single store.
type shell struct {
	store *store.Store
	in    *bufio.Scanner
	out   io.Writer
}

func newShell(s *store.Store, in io.Reader, out io.Writer) *shell {
	return &shell{store: s, in: bufio.NewScanner(in), out: out}
}

func (sh *shell) run(ctx context.Context) error {
	sh.prompt()
	for sh.in.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sh.in.Text())
		name, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch name {
		case "":
		case "quit", "exit":
			return nil
		default:
			if err := sh.exec(ctx, name, rest); err != nil {
				fmt.Fprintf(sh.out, "error: %v\n", err)
			}
		}
		sh.prompt()
	}
	return sh.in.Err()
}

func (sh *shell) prompt() {
	if draft, ok := sh.store.Editing(); ok {
		fmt.Fprintf(sh.out, "todo(edit %s)> ", shortID(draft.TaskID))
		return
	}
	fmt.Fprint(sh.out, "todo> ")
}

func (sh *shell) exec(ctx context.Context, name, arg string) error {
	s := sh.store
	switch name {
	case "help":
		fmt.Fprintln(sh.out, shellHelp)

	case "list", "ls":
		tasks, res := s.ListTasks(ctx)
		if !res.OK() {
			fmt.Fprintf(sh.out, "could not refresh, showing the last known list: %v\n", res.Err)
		}
		printTasks(sh.out, tasks)

	case "show":
		id, err := sh.id(arg)
		if err != nil {
			return err
		}
		for _, t := range s.Tasks() {
			if t.ID == id {
				printTask(sh.out, s, t)
			}
		}

	case "attach":
		paths := strings.Fields(arg)
		if len(paths) == 0 {
			return fmt.Errorf("%w: attach <path>...", errUsage)
		}
		files := make([]attachments.File, 0, len(paths))
		for _, p := range paths {
			f, err := attachments.FromPath(p)
			if err != nil {
				return err
			}
			files = append(files, f)
		}
		res := s.SelectFiles(ctx, files)
		if errors.Is(res.Err, store.ErrUnreadable) {
			fmt.Fprintln(sh.out, res.Err)
		} else if res.Reason == store.ReasonTransport {
			return resultErr(res)
		}
		sh.printPending()

	case "detach":
		if arg == "" {
			return fmt.Errorf("%w: detach <name>", errUsage)
		}
		s.RemoveAttachment(arg)
		sh.printPending()

	case "pending":
		sh.printPending()

	case "add":
		title, content, found := strings.Cut(arg, "|")
		if !found {
			return fmt.Errorf("%w: add <title> | <content>", errUsage)
		}
		task, res := s.CreateTask(ctx, strings.TrimSpace(title), strings.TrimSpace(content))
		if !res.OK() {
			return resultErr(res)
		}
		fmt.Fprintf(sh.out, "created %s\n", task.ID)

	case "toggle", "done":
		id, err := sh.id(arg)
		if err != nil {
			return err
		}
		if res := s.ToggleTaskStatus(ctx, id); !res.OK() {
			return resultErr(res)
		}
		fmt.Fprintf(sh.out, "%s is now %s\n", shortID(id), statusOf(s.Tasks(), id))

	case "rm":
		id, err := sh.id(arg)
		if err != nil {
			return err
		}
		if res := s.RemoveTask(ctx, id); !res.OK() {
			return resultErr(res)
		}
		fmt.Fprintf(sh.out, "removed %s\n", shortID(id))

	case "edit":
		id, err := sh.id(arg)
		if err != nil {
			return err
		}
		if res := s.OpenEdit(id); !res.OK() {
			return resultErr(res)
		}
		fmt.Fprintln(sh.out, "set title and content, then save or cancel")

	case "title", "content":
		if _, ok := s.Editing(); !ok {
			return store.ErrNotEditing
		}
		if name == "title" {
			s.SetDraftTitle(arg)
		} else {
			s.SetDraftContent(arg)
		}

	case "save":
		if res := s.SaveEdit(ctx); !res.OK() {
			return resultErr(res)
		}
		fmt.Fprintln(sh.out, "saved")

	case "cancel":
		s.CancelEdit()

	case "state":
		load, err := s.LoadState()
		fmt.Fprintf(sh.out, "form: %s\nlist: %s\n", s.FormState(), load)
		if err != nil {
			fmt.Fprintf(sh.out, "last load error: %v\n", err)
		}

	default:
		return fmt.Errorf("unknown command %q, try help", name)
	}
	return nil
}

func (sh *shell) id(arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("%w: an id is required", errUsage)
	}
	return resolveID(sh.store.Tasks(), arg)
}

func (sh *shell) printPending() {
	pending := sh.store.PendingAttachments()
	if msg := sh.store.AttachmentMessage(); msg != "" {
		fmt.Fprintln(sh.out, msg)
	}
	if len(pending) == 0 {
		fmt.Fprintln(sh.out, "no pending images")
		return
	}
	for _, p := range pending {
		fmt.Fprintf(sh.out, "  %s (%s)\n", p.Name, p.Type)
	}
}
