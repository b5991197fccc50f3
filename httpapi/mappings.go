package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"careregistry/apperr"
	"careregistry/assignment"
)

func (s *Server) handleListMappings(w http.ResponseWriter, r *http.Request) {
	page, err := pageFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	active, err := queryBool(r, "is_active")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rows, total, err := s.assignments.List(r.Context(), callerFrom(r.Context()), assignment.Filter{IsActive: active, Page: page})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[mappingResponse]{Count: total, Results: toMappingResponses(rows)})
}

func (s *Server) handleGetMapping(w http.ResponseWriter, r *http.Request) {
	a, err := s.assignments.Get(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMappingResponse(a))
}

func (s *Server) handleCreateMapping(w http.ResponseWriter, r *http.Request) {
	var in assignment.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	a, err := s.assignments.Create(r.Context(), callerFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMappingResponse(a))
}

// handleUpdateMapping serves PUT and PATCH. The linked profiles may be echoed
// back unchanged but never replaced.
func (s *Server) handleUpdateMapping(w http.ResponseWriter, r *http.Request) {
	var req mappingUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	caller := callerFrom(r.Context())
	id := chi.URLParam(r, "id")

	if req.PatientID != nil || req.DoctorID != nil {
		current, err := s.assignments.Get(r.Context(), caller, id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		invalid := apperr.Fields{}
		if req.PatientID != nil && *req.PatientID != current.Patient.ID {
			invalid["patient_id"] = "cannot be changed"
		}
		if req.DoctorID != nil && *req.DoctorID != current.Doctor.ID {
			invalid["doctor_id"] = "cannot be changed"
		}
		if len(invalid) > 0 {
			s.writeError(w, r, invalid)
			return
		}
	}

	a, err := s.assignments.Update(r.Context(), caller, id, assignment.Patch{IsActive: req.IsActive, Notes: req.Notes})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMappingResponse(a))
}

func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	if err := s.assignments.Delete(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePatientDoctors(w http.ResponseWriter, r *http.Request) {
	rows, err := s.assignments.ListMyDoctors(r.Context(), callerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMappingResponses(rows))
}

func (s *Server) handleDoctorPatients(w http.ResponseWriter, r *http.Request) {
	rows, err := s.assignments.ListMyPatients(r.Context(), callerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMappingResponses(rows))
}
