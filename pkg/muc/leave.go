// Copyright 2023 The jackal Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package muc

import (
	"github.com/jackal-xmpp/stravaganza/v2"
	mucmodel "github.com/ortuman/jackal-client/pkg/model/muc"
)

// classifyLeave tells why an occupant is no longer in the room, looking at its unavailable presence.
// A single presence may carry overlapping status codes, so they are evaluated in decreasing order of severity.
func classifyLeave(pr *stravaganza.Presence, ui userInfo) mucmodel.LeaveMode {
	switch {
	case pr.Attribute(stravaganza.Type) == stravaganza.ErrorType:
		return mucmodel.LeaveError
	case ui.hasStatus(statusBanned):
		return mucmodel.LeaveBanned
	case ui.hasStatus(statusTechnicalReasons):
		return mucmodel.LeaveError
	case ui.hasStatus(statusKicked):
		return mucmodel.LeaveKicked
	case ui.hasStatus(statusAffiliationChange), ui.hasStatus(statusMembersOnly):
		return mucmodel.LeaveAffiliationChange
	case ui.hasStatus(statusSystemShutdown):
		return mucmodel.LeaveSystemShutdown
	}
	return mucmodel.LeaveNormal
}
