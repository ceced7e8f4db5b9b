package display

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/teranos/metagen/errors"
)

// Table writes rows under header as an aligned table.
func Table(w io.Writer, header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)

	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "render table")
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
