// Copyright 2025 Mangwale
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

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mangwale/assistant-core/internal/httpclient"
)

// HTTPVerifier is the default Verifier/ProfileUpdater, calling the PHP
// backend's auth endpoints. The backend owns the semantics; this is a
// thin wire adapter in the same style as
// nlu.HTTPClassifier and flow.HTTPEngine.
type HTTPVerifier struct {
	Client  *httpclient.Client
	BaseURL string
}

type sendOTPRequest struct {
	Phone string `json:"phone"`
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type updateProfileRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type profileResponse struct {
	UserID         int64  `json:"userId"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	IsPersonalInfo bool   `json:"isPersonalInfo"`
}

func (r profileResponse) toProfile() Profile {
	return Profile{UserID: r.UserID, Name: r.Name, Email: r.Email, Phone: r.Phone, IsPersonalInfo: r.IsPersonalInfo}
}

func (v *HTTPVerifier) SendOTP(ctx context.Context, phone string) error {
	return v.post(ctx, "/auth/otp/send", sendOTPRequest{Phone: phone}, nil)
}

func (v *HTTPVerifier) VerifyOTP(ctx context.Context, phone, code string) (Profile, error) {
	var out profileResponse
	if err := v.post(ctx, "/auth/otp/verify", verifyOTPRequest{Phone: phone, Code: code}, &out); err != nil {
		return Profile{}, err
	}
	return out.toProfile(), nil
}

func (v *HTTPVerifier) UpdateUserInfo(ctx context.Context, phone, name, email string) (Profile, error) {
	var out profileResponse
	if err := v.post(ctx, "/auth/profile", updateProfileRequest{Phone: phone, Name: name, Email: email}, &out); err != nil {
		return Profile{}, err
	}
	return out.toProfile(), nil
}

func (v *HTTPVerifier) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.Client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: post %s returned %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("auth: decode %s response: %w", path, err)
	}
	return nil
}

var (
	_ Verifier       = (*HTTPVerifier)(nil)
	_ ProfileUpdater = (*HTTPVerifier)(nil)
)
