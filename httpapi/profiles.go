package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"careregistry/db"
	"careregistry/profile"
	"careregistry/validate"
)

func pageFrom(r *http.Request) (db.Page, error) {
	number, err := queryInt(r, "page")
	if err != nil {
		return db.Page{}, err
	}
	size, err := queryInt(r, "page_size")
	if err != nil {
		return db.Page{}, err
	}
	return db.Page{Number: number, Size: size}, nil
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	page, err := pageFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()

	patients, total, err := s.profiles.ListPatients(r.Context(), callerFrom(r.Context()), profile.PatientFilter{
		Gender: q.Get("gender"),
		Search: q.Get("search"),
		Page:   page,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := listResponse[patientResponse]{Count: total, Results: make([]patientResponse, 0, len(patients))}
	for _, p := range patients {
		resp.Results = append(resp.Results, toPatientResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.GetPatient(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientResponse(p))
}

func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.profiles.CreatePatient(r.Context(), callerFrom(r.Context()), profile.CreatePatientInput{
		AccountID:     req.UserID,
		PatientFields: fields,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPatientResponse(p))
}

func (s *Server) handleReplacePatient(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	fields, err := req.fields()
	if err == nil {
		err = validate.Struct(fields)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.profiles.UpdatePatient(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), fields.Full())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientResponse(p))
}

func (s *Server) handlePatchPatient(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.profiles.UpdatePatient(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientResponse(p))
}

func (s *Server) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	if err := s.profiles.DeletePatient(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDoctors(w http.ResponseWriter, r *http.Request) {
	page, err := pageFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()

	doctors, total, err := s.profiles.ListDoctors(r.Context(), callerFrom(r.Context()), profile.DoctorFilter{
		Specialization: q.Get("specialization"),
		Search:         q.Get("search"),
		Page:           page,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := listResponse[doctorResponse]{Count: total, Results: make([]doctorResponse, 0, len(doctors))}
	for _, d := range doctors {
		resp.Results = append(resp.Results, toDoctorResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDoctor(w http.ResponseWriter, r *http.Request) {
	d, err := s.profiles.GetDoctor(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDoctorResponse(d))
}

// handleCreateDoctor ignores any user_id in the body; the profile always
// belongs to the caller.
func (s *Server) handleCreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req doctorRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.profiles.CreateDoctor(r.Context(), callerFrom(r.Context()), fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDoctorResponse(d))
}

func (s *Server) handleReplaceDoctor(w http.ResponseWriter, r *http.Request) {
	var req doctorRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	fields, err := req.fields()
	if err == nil {
		err = validate.Struct(fields)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.profiles.UpdateDoctor(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), fields.Full())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDoctorResponse(d))
}

func (s *Server) handlePatchDoctor(w http.ResponseWriter, r *http.Request) {
	var req doctorRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	d, err := s.profiles.UpdateDoctor(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), req.patch())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDoctorResponse(d))
}

func (s *Server) handleDeleteDoctor(w http.ResponseWriter, r *http.Request) {
	if err := s.profiles.DeleteDoctor(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
