package browser

import (
	"encoding/json"
	"fmt"
)

// Elements handed out by the chromedp driver are indexes into a registry kept
// on the document they were found in. A document gets a random generation
// when its registry is created, so a handle taken before a navigation can
// never resolve to a node of the next document.
const registryPrelude = `const d = document;
if (!d.__orgsetupGen) { d.__orgsetupGen = Math.random().toString(36).slice(2); d.__orgsetupNodes = []; }
const reg = (n) => { const i = d.__orgsetupNodes.indexOf(n); return i >= 0 ? i : d.__orgsetupNodes.push(n) - 1; };`

type handles struct {
	Gen string `json:"gen"`
	IDs []int  `json:"ids"`
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func queryScript(selector string) string {
	return fmt.Sprintf(`(function(){
%s
return {gen: d.__orgsetupGen, ids: Array.from(d.querySelectorAll(%s)).map(reg)};
})()`, registryPrelude, jsString(selector))
}

// elementScript runs body with el bound to the registered node, failing when
// the handle is stale.
func elementScript(gen string, id int, body string) string {
	return fmt.Sprintf(`(function(){
%s
if (d.__orgsetupGen !== %s) throw new Error("stale element");
const el = d.__orgsetupNodes[%d];
if (!el || !el.isConnected) throw new Error("stale element");
%s
})()`, registryPrelude, jsString(gen), id, body)
}

func propertyBody(name string) string {
	return fmt.Sprintf(`const v = el[%s];
return v === undefined || v === null ? "" : String(v);`, jsString(name))
}

const (
	childrenBody = `return {gen: d.__orgsetupGen, ids: Array.from(el.children).map(reg)};`
	clickBody    = `el.scrollIntoView({block: "center"}); el.click(); return true;`
	focusBody    = `el.focus(); return true;`
	clearBody    = `el.value = "";
el.dispatchEvent(new Event("input", {bubbles: true}));
el.dispatchEvent(new Event("change", {bubbles: true}));
return true;`
)

func selectBody(value string) string {
	return fmt.Sprintf(`const v = %s;
el.value = v;
el.dispatchEvent(new Event("change", {bubbles: true}));
return el.value === v;`, jsString(value))
}
