// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

/* Package history logs per-system-index boot outcomes to disk. It is
diagnostic data, not part of the selection decision - it exists so field
failures can be explained after the fact.
*/
package history

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	fp "path/filepath"
	"time"

	"github.com/purecloudlabs/bootsel/pkg/fsutil"
	"github.com/purecloudlabs/bootsel/pkg/log"
)

const histName = "boot_history.json"

var (
	histPath string
	// MaxFailuresPerSystem is the max allowed sum of InstallFailures and
	// BootFailures before Check reports a system as unreliable.
	MaxFailuresPerSystem uint = 5
	results              ResultList
)

// SystemResult tracks outcomes for one system index across reboots.
type SystemResult struct {
	SystemIndex     int
	InstallAttempts uint     `json:",omitempty"`
	InstallFailures uint     `json:",omitempty"`
	BootAttempts    uint     `json:",omitempty"`
	BootFailures    uint     `json:",omitempty"`
	Notes           []string `json:",omitempty"`
}

type ResultList []*SystemResult

//makes the json look nice
type serializationFmt struct {
	SystemResults ResultList
}

// SetRoot sets the directory the history file lives in, creating it if
// necessary.
func SetRoot(dir string) {
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		log.Logf("error %s creating dir %s for %s", err, dir, histName)
	}
	histPath = fp.Join(dir, histName)
}

// Rollover archives the current history file as ".prev", discarding any
// older ".prev". Called whenever a golden install occurs, since that event
// marks a natural boundary in the boot history.
func Rollover(dir string) {
	if len(histPath) == 0 {
		SetRoot(dir)
	}
	old := histPath + ".prev"
	err := os.Remove(old)
	if err != nil && !os.IsNotExist(err) {
		log.Logf("history log - removing %s: %s", old, err)
	}
	err = os.Rename(histPath, old)
	if err != nil && !os.IsNotExist(err) {
		log.Logf("history log - roll %s: %s", histPath, err)
	}
	results = nil
}

// Load reads the history file into memory. Returns true if it could be
// loaded or simply doesn't exist yet (a fresh install).
func Load() (ok bool) {
	if len(histPath) == 0 {
		panic("dir for history file must be specified")
	}
	_, err := os.Stat(histPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Logf("%s does not exist, assuming new install", histPath)
			return true
		}
		log.Logf("error %s stat'ing %s", err, histPath)
		return false
	}

	data, err := ioutil.ReadFile(histPath)
	if err != nil {
		log.Logf("error %s reading %s", err, histPath)
		return false
	}
	var content serializationFmt
	err = json.Unmarshal(data, &content)
	if err != nil {
		log.Logf("Error %s loading boot history", err)
		fsutil.RenameUnique(histPath, histName+"_bad")
	} else {
		results = content.SystemResults
	}
	return true
}

// Records returns a copy of the currently loaded history, calling Load
// first so callers don't need to remember to.
func Records() ResultList {
	Load()
	cp := make(ResultList, len(results))
	copy(cp, results)
	return cp
}

// Check returns false if too many failures are recorded for a system index.
func Check(index int) (ok bool) {
	for _, r := range results {
		if r.SystemIndex == index {
			return r.InstallFailures+r.BootFailures <= MaxFailuresPerSystem
		}
	}
	return true
}

// RecordBootState records one boot cycle's outcome for the given system
// index.
func RecordBootState(index int, success bool, severity uint, bTime time.Time, notes string) {
	Load()
	var result *SystemResult
	for i := range results {
		if results[i].SystemIndex == index {
			result = results[i]
			break
		}
	}
	if result == nil {
		result = &SystemResult{SystemIndex: index}
	}
	result.BootAttempts++
	thisBoot := fmt.Sprintf("Boot @ %s, success: %t", bTime.Format(time.RFC3339), success)
	if !success {
		if severity < 1 {
			severity = 1
		}
		result.BootFailures += severity
		thisBoot += fmt.Sprintf(", severity: %d, notes: %s", severity, notes)
	}
	result.Notes = append(result.Notes, thisBoot)
	results.moveOrAddFront(result)

	write(results)
}

// RecordInstall records the outcome of a golden install for the given
// (newly created) system index.
func RecordInstall(index int, success bool) {
	Load()
	var result *SystemResult
	for i := range results {
		if results[i].SystemIndex == index {
			result = results[i]
			break
		}
	}
	if result == nil {
		result = &SystemResult{SystemIndex: index}
	}
	result.InstallAttempts++
	if !success {
		result.InstallFailures++
	}
	note := fmt.Sprintf("Install @ %s, success: %t", time.Now().Format(time.RFC3339), success)
	result.Notes = append(result.Notes, note)
	results.moveOrAddFront(result)
	write(results)
}

func write(res ResultList) {
	var content serializationFmt
	content.SystemResults = res
	data, err := json.Marshal(content)
	if err != nil {
		log.Logf("error %s marshalling json for %v", err, content)
		return
	}
	err = ioutil.WriteFile(histPath, data, 0644)
	if err != nil {
		log.Logf("error %s writing data to %s", err, histPath)
	}
}

//if item exists in list, make it the first item. otherwise insert as first item.
func (rl *ResultList) moveOrAddFront(item *SystemResult) {
	for i := range *rl {
		if (*rl)[i] == item {
			copy((*rl)[i:], (*rl)[i+1:])
			(*rl)[len(*rl)-1] = nil
			(*rl) = (*rl)[:len(*rl)-1]
			break
		}
	}
	l := &ResultList{item}
	*rl = append(*l, (*rl)...)
}
