package cdp

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/ashparshp/hairone/pkg/browser"
)

const handleAttr = "data-uiverify-handle"

// locateScript finds matches for kind/value/name and tags each with a stable
// handle attribute so later clicks and fills can address it by selector.
const locateScript = `(() => {
  const kind = %s, value = %s, name = %s;
  const norm = (s) => (s || "").replace(/\s+/g, " ").trim();
  const fold = (s) => norm(s).toLowerCase();
  const contains = (hay, needle) => fold(hay).includes(fold(needle));
  const skip = new Set(["SCRIPT", "STYLE", "HEAD", "TITLE", "NOSCRIPT"]);
  const textOf = (el) => norm(el.textContent);
  const roleOf = (el) => {
    const explicit = el.getAttribute("role");
    if (explicit) return explicit.trim();
    switch (el.tagName) {
      case "BUTTON": return "button";
      case "A": return el.hasAttribute("href") ? "link" : "";
      case "INPUT": {
        const t = (el.getAttribute("type") || "").toLowerCase();
        if (t === "checkbox" || t === "radio") return t;
        if (t === "submit" || t === "button" || t === "reset") return "button";
        return "textbox";
      }
      case "TEXTAREA": return "textbox";
      case "IMG": return "img";
      case "H1": case "H2": case "H3": case "H4": case "H5": case "H6": return "heading";
      case "NAV": return "navigation";
      case "UL": case "OL": return "list";
      case "LI": return "listitem";
    }
    return "";
  };
  const accessibleName = (el) => {
    if (el.hasAttribute("aria-label")) return el.getAttribute("aria-label");
    if (el.tagName === "IMG") return el.getAttribute("alt") || "";
    return textOf(el) || el.getAttribute("placeholder") || "";
  };
  const visible = (el) => {
    if (!el.isConnected) return false;
    const style = getComputedStyle(el);
    if (style.display === "none" || style.visibility === "hidden") return false;
    const rect = el.getBoundingClientRect();
    return rect.width > 0 && rect.height > 0;
  };
  const deepest = (el, pred) => pred(el) && !Array.from(el.children).some(pred);

  let pred;
  switch (kind) {
    case "text": pred = (el) => deepest(el, (e) => contains(textOf(e), value)); break;
    case "text-exact": pred = (el) => deepest(el, (e) => textOf(e) === norm(value)); break;
    case "placeholder": pred = (el) => el.hasAttribute("placeholder") && contains(el.getAttribute("placeholder"), value); break;
    case "role": pred = (el) => roleOf(el) === value && (!name || contains(accessibleName(el), name)); break;
    case "css": pred = (el) => el.matches(value); break;
    default: throw new Error("unknown locator kind " + kind);
  }

  const root = document.body;
  if (!root) return [];
  window.__uiverifySeq = window.__uiverifySeq || 0;
  const out = [];
  for (const el of root.querySelectorAll("*")) {
    if (skip.has(el.tagName) || !pred(el)) continue;
    let handle = el.getAttribute("` + handleAttr + `");
    if (!handle) {
      handle = "h" + (++window.__uiverifySeq);
      el.setAttribute("` + handleAttr + `", handle);
    }
    const attrs = {};
    for (const a of el.attributes) {
      if (a.name !== "` + handleAttr + `") attrs[a.name] = a.value;
    }
    out.push({ handle, tag: el.tagName.toLowerCase(), text: textOf(el), visible: visible(el), attrs });
  }
  return out;
})()`

// buildLocateScript renders locateScript with loc's arguments as JS literals.
func buildLocateScript(loc browser.Locator) (string, error) {
	kind, err := sonic.MarshalString(string(loc.Kind))
	if err != nil {
		return "", err
	}
	value, err := sonic.MarshalString(loc.Value)
	if err != nil {
		return "", err
	}
	name, err := sonic.MarshalString(loc.Name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(locateScript, kind, value, name), nil
}

func handleSelector(el browser.Element) string {
	return fmt.Sprintf(`[%s=%q]`, handleAttr, el.Handle)
}

// attachedScript reports whether the handle still resolves, and whether the
// element can take text input.
func attachedScript(el browser.Element) string {
	sel, _ := sonic.MarshalString(handleSelector(el))
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return { attached: false, editable: false };
  const editable = (el.tagName === "INPUT" || el.tagName === "TEXTAREA" || el.isContentEditable) && !el.disabled && !el.readOnly;
  return { attached: true, editable };
})()`, sel)
}

func selectAllScript(el browser.Element) string {
	sel, _ := sonic.MarshalString(handleSelector(el))
	return fmt.Sprintf(`(() => { const el = document.querySelector(%s); if (el && el.select) el.select(); return true; })()`, sel)
}

const localStorageScript = `(() => {
  try {
    const out = {};
    for (let i = 0; i < localStorage.length; i++) {
      const k = localStorage.key(i);
      out[k] = localStorage.getItem(k);
    }
    return out;
  } catch (e) {
    return {};
  }
})()`
