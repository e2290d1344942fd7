package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	htmlstd "html"
	"html/template"
	"strings"

	"github.com/lcalzada-xor/phishguard/internal/present"
)

// Identifiers shared by the popup page and the code driving it.
const (
	BindingName = "phishguardCheck"
	ButtonID    = "checkBtn"
	ResultID    = "result"
)

const popupTemplate = `<!doctype html>
<html>
<head>
    <meta charset="utf-8">
    <title>Phishing Detector</title>
    <style>
        body { font-family: sans-serif; width: 260px; padding: 12px; }
        button { width: 100%; padding: 8px; font-size: 14px; cursor: pointer; }
        #result { margin-top: 12px; font-size: 14px; min-height: 2.5em; }
    </style>
</head>
<body>
    <h3>🛡️ Phishing Detector</h3>
    <button id="{{.ButtonID}}" type="button">Check this page</button>
    <div id="{{.ResultID}}"></div>
    <script>
        document.getElementById({{.ButtonID}}).addEventListener("click", function () {
            if (typeof window[{{.BindingName}}] === "function") {
                window[{{.BindingName}}]("");
            }
        });
    </script>
</body>
</html>
`

// PopupHTML renders the popup page: one trigger button and one result region.
func PopupHTML() (string, error) {
	tpl, err := template.New("popup").Parse(popupTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	data := struct {
		BindingName string
		ButtonID    string
		ResultID    string
	}{
		BindingName: BindingName,
		ButtonID:    ButtonID,
		ResultID:    ResultID,
	}

	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PanelMarkup returns the inner HTML of the result region for view.
func PanelMarkup(view present.View) string {
	if view.Detail == "" {
		return htmlstd.EscapeString(view.Headline)
	}

	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(htmlstd.EscapeString(view.Headline))
	b.WriteString("</b><br>")
	b.WriteString(htmlstd.EscapeString(view.Detail))
	return b.String()
}

// PanelScript returns a script that renders view into the result region.
// The color is only changed when the view carries one.
func PanelScript(view present.View) (string, error) {
	id, err := json.Marshal(ResultID)
	if err != nil {
		return "", err
	}
	markup, err := json.Marshal(PanelMarkup(view))
	if err != nil {
		return "", err
	}

	script := fmt.Sprintf(`(function () {
	const el = document.getElementById(%s);
	if (!el) { return false; }
	el.innerHTML = %s;
	el.dataset.state = %q;`, id, markup, view.State.String())

	if view.Color != "" {
		color, err := json.Marshal(view.Color)
		if err != nil {
			return "", err
		}
		script += fmt.Sprintf("\n\tel.style.color = %s;", color)
	}

	script += "\n\treturn true;\n})()"
	return script, nil
}
