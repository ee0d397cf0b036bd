// Package notebook holds the ordered cell collection of one notebook view.
//
// Store is the single owner of the cells. Every mutation goes through one of
// its operations; callers get copies and never alias internal state.
package notebook
