package browser

import (
	"encoding/json"
	"fmt"
)

const imageAttr = "data-ingest-img"

var imageProbeJS = fmt.Sprintf(`(function () {
  const out = [];
  let i = 0;
  for (const img of document.querySelectorAll('img')) {
    const r = img.getBoundingClientRect();
    if (r.width <= 0 || r.height <= 0) continue;
    const st = window.getComputedStyle(img);
    if (st.display === 'none' || st.visibility === 'hidden' || st.opacity === '0') continue;
    img.setAttribute('%[1]s', String(i));
    out.push({selector: 'img[%[1]s="' + i + '"]', src: img.currentSrc || img.src || '', width: r.width, height: r.height});
    i++;
  }
  return out;
})()`, imageAttr)

// modalSelectors cover the lightbox and dialog markup seen on public-sector
// CMS pages.
var modalSelectors = []string{
	"[role=dialog]",
	"[aria-modal=true]",
	".modal.show",
	".modal.in",
	".modal[style*=block]",
	".layer_popup",
	".layerPopup",
	".popup_layer",
	".pop_layer",
	".lightbox",
	".fancybox-container",
	".mfp-wrap",
	"#lightbox",
	".lb-outerContainer",
	"dialog[open]",
}

const modalSeenAttr = "data-ingest-modal-seen"

// modalProbeJS returns the first modal selector with a visible element that
// was not visible at the last marking pass. With mark set it instead tags the
// currently visible modals and returns ''.
func modalProbeJS(mark bool) string {
	return fmt.Sprintf(`(function (sels, attr, mark) {
  const visible = (el) => {
    const r = el.getBoundingClientRect();
    const st = window.getComputedStyle(el);
    return r.width > 50 && r.height > 50 && st.display !== 'none' && st.visibility !== 'hidden' && st.opacity !== '0';
  };
  if (mark) {
    for (const el of document.querySelectorAll('[' + attr + ']')) el.removeAttribute(attr);
  }
  for (const s of sels) {
    let els;
    try { els = document.querySelectorAll(s); } catch (e) { continue; }
    for (const el of els) {
      if (!visible(el)) continue;
      if (mark) { el.setAttribute(attr, ''); continue; }
      if (!el.hasAttribute(attr)) return s;
    }
  }
  return '';
})(%s, %s, %t)`, mustJSON(modalSelectors), jsString(modalSeenAttr), mark)
}

func firstMatchJS(selectors []string) string {
	return fmt.Sprintf(`(function (sels) {
  for (const s of sels) {
    try { if (document.querySelector(s)) return s; } catch (e) {}
  }
  return '';
})(%s)`, mustJSON(selectors))
}

func jsClick(selector string) string {
	return fmt.Sprintf(`(function (s) {
  const el = document.querySelector(s);
  if (!el) return false;
  el.click();
  return true;
})(%s)`, jsString(selector))
}

func setSelectJS(selector, value string) string {
	return fmt.Sprintf(`(function (s, v) {
  const el = document.querySelector(s);
  if (!el) return false;
  el.value = v;
  el.dispatchEvent(new Event('input', {bubbles: true}));
  el.dispatchEvent(new Event('change', {bubbles: true}));
  return true;
})(%s, %s)`, jsString(selector), jsString(value))
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
